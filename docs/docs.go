// Package docs registers the qadesk OpenAPI document with swag.
//
// The document mirrors the swag annotations on the HTTP transport handlers.
// Regenerate with: swag init -g cmd/qadesk/main.go --parseInternal
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/sessions": {
            "post": {
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "sessions"
                ],
                "summary": "Create a session",
                "description": "Starts a session in landing mode and returns its initial view.",
                "responses": {
                    "201": {
                        "description": "Created",
                        "schema": {
                            "$ref": "#/definitions/message.Result"
                        }
                    }
                }
            }
        },
        "/sessions/{id}": {
            "get": {
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "sessions"
                ],
                "summary": "Get a session",
                "parameters": [
                    {
                        "type": "string",
                        "description": "Session ID",
                        "name": "id",
                        "in": "path",
                        "required": true
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/message.Result"
                        }
                    },
                    "404": {
                        "description": "Not Found",
                        "schema": {
                            "$ref": "#/definitions/message.Result"
                        }
                    }
                }
            },
            "delete": {
                "tags": [
                    "sessions"
                ],
                "summary": "End a session",
                "parameters": [
                    {
                        "type": "string",
                        "description": "Session ID",
                        "name": "id",
                        "in": "path",
                        "required": true
                    }
                ],
                "responses": {
                    "204": {
                        "description": "No Content"
                    },
                    "404": {
                        "description": "Not Found",
                        "schema": {
                            "$ref": "#/definitions/message.Result"
                        }
                    }
                }
            }
        },
        "/sessions/{id}/history-visibility": {
            "put": {
                "consumes": [
                    "application/json"
                ],
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "sessions"
                ],
                "summary": "Show or hide history",
                "parameters": [
                    {
                        "type": "string",
                        "description": "Session ID",
                        "name": "id",
                        "in": "path",
                        "required": true
                    },
                    {
                        "description": "Visibility",
                        "name": "visibility",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/http.VisibilityRequest"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/message.Result"
                        }
                    }
                }
            }
        },
        "/sessions/{id}/image": {
            "post": {
                "consumes": [
                    "image/png",
                    "image/jpeg",
                    "multipart/form-data"
                ],
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "images"
                ],
                "summary": "Upload an image",
                "description": "POST a jpg or png as the raw body, or as multipart field \"image\".",
                "parameters": [
                    {
                        "type": "string",
                        "description": "Session ID",
                        "name": "id",
                        "in": "path",
                        "required": true
                    },
                    {
                        "type": "file",
                        "description": "Image file (multipart uploads)",
                        "name": "image",
                        "in": "formData"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/message.Result"
                        }
                    },
                    "502": {
                        "description": "Text extraction failed",
                        "schema": {
                            "$ref": "#/definitions/message.Result"
                        }
                    }
                }
            }
        },
        "/sessions/{id}/image/questions": {
            "post": {
                "consumes": [
                    "application/json"
                ],
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "images"
                ],
                "summary": "Ask about the image",
                "parameters": [
                    {
                        "type": "string",
                        "description": "Session ID",
                        "name": "id",
                        "in": "path",
                        "required": true
                    },
                    {
                        "description": "Question",
                        "name": "question",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/http.QuestionRequest"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/message.Result"
                        }
                    },
                    "400": {
                        "description": "No image uploaded or empty question",
                        "schema": {
                            "$ref": "#/definitions/message.Result"
                        }
                    }
                }
            }
        },
        "/sessions/{id}/mode": {
            "post": {
                "consumes": [
                    "application/json"
                ],
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "sessions"
                ],
                "summary": "Change mode",
                "description": "\"text\" and \"image\" are accepted from landing; \"landing\" goes back from either.",
                "parameters": [
                    {
                        "type": "string",
                        "description": "Session ID",
                        "name": "id",
                        "in": "path",
                        "required": true
                    },
                    {
                        "description": "Target mode",
                        "name": "mode",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/http.ModeRequest"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/message.Result"
                        }
                    },
                    "400": {
                        "description": "Bad Request",
                        "schema": {
                            "$ref": "#/definitions/message.Result"
                        }
                    }
                }
            }
        },
        "/sessions/{id}/questions": {
            "post": {
                "consumes": [
                    "application/json"
                ],
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "questions"
                ],
                "summary": "Ask a question",
                "description": "The answer is recorded in history. Safety refusals and generation errors are\nreturned as answer text with a notice.",
                "parameters": [
                    {
                        "type": "string",
                        "description": "Session ID",
                        "name": "id",
                        "in": "path",
                        "required": true
                    },
                    {
                        "description": "Question",
                        "name": "question",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/http.QuestionRequest"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/message.Result"
                        }
                    },
                    "400": {
                        "description": "Empty question or wrong mode",
                        "schema": {
                            "$ref": "#/definitions/message.Result"
                        }
                    }
                }
            }
        },
        "/sessions/{id}/speech": {
            "post": {
                "produces": [
                    "audio/wav",
                    "audio/mpeg",
                    "application/json"
                ],
                "tags": [
                    "speech"
                ],
                "summary": "Hear the response",
                "description": "Returns the audio clip. With format=json the Result with base64 audio is returned instead.",
                "parameters": [
                    {
                        "type": "string",
                        "description": "Session ID",
                        "name": "id",
                        "in": "path",
                        "required": true
                    },
                    {
                        "type": "string",
                        "description": "Set to json for a JSON Result",
                        "name": "format",
                        "in": "query"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "type": "file"
                        }
                    },
                    "502": {
                        "description": "Synthesis failed",
                        "schema": {
                            "$ref": "#/definitions/message.Result"
                        }
                    }
                }
            }
        },
        "/sessions/{id}/voice": {
            "post": {
                "consumes": [
                    "audio/wav",
                    "audio/ogg",
                    "audio/webm"
                ],
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "questions"
                ],
                "summary": "Ask by voice",
                "description": "POST the recorded utterance as the raw body with its audio Content-Type.",
                "parameters": [
                    {
                        "type": "string",
                        "description": "Session ID",
                        "name": "id",
                        "in": "path",
                        "required": true
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/message.Result"
                        }
                    },
                    "422": {
                        "description": "Speech could not be understood",
                        "schema": {
                            "$ref": "#/definitions/message.Result"
                        }
                    },
                    "502": {
                        "description": "Speech service unreachable",
                        "schema": {
                            "$ref": "#/definitions/message.Result"
                        }
                    }
                }
            }
        }
    },
    "definitions": {
        "http.ModeRequest": {
            "type": "object",
            "properties": {
                "mode": {
                    "type": "string",
                    "example": "text"
                }
            }
        },
        "http.QuestionRequest": {
            "type": "object",
            "properties": {
                "question": {
                    "type": "string",
                    "example": "What is photosynthesis?"
                }
            }
        },
        "http.VisibilityRequest": {
            "type": "object",
            "properties": {
                "show": {
                    "type": "boolean"
                }
            }
        },
        "message.Entry": {
            "type": "object",
            "properties": {
                "question": {
                    "type": "string"
                },
                "response": {
                    "type": "string"
                }
            }
        },
        "message.Notice": {
            "type": "object",
            "properties": {
                "level": {
                    "type": "string",
                    "enum": [
                        "info",
                        "warning",
                        "error"
                    ]
                },
                "message": {
                    "type": "string"
                }
            }
        },
        "message.Result": {
            "type": "object",
            "properties": {
                "action": {
                    "type": "string"
                },
                "audio": {
                    "description": "Audio is the synthesized speech as a base64-encoded string.",
                    "type": "string"
                },
                "audio_content_type": {
                    "type": "string"
                },
                "error": {
                    "description": "Error is set if the action failed. Session state is unchanged in that case.",
                    "type": "string"
                },
                "error_kind": {
                    "type": "string",
                    "enum": [
                        "input",
                        "recognition_empty",
                        "service_unavailable",
                        "extraction",
                        "synthesis",
                        "invalid_transition",
                        "not_found"
                    ]
                },
                "notices": {
                    "type": "array",
                    "items": {
                        "$ref": "#/definitions/message.Notice"
                    }
                },
                "response": {
                    "type": "string"
                },
                "transcript": {
                    "type": "string"
                },
                "view": {
                    "$ref": "#/definitions/message.View"
                }
            }
        },
        "message.View": {
            "type": "object",
            "properties": {
                "has_image_context": {
                    "type": "boolean"
                },
                "history": {
                    "type": "array",
                    "items": {
                        "$ref": "#/definitions/message.Entry"
                    }
                },
                "image_context": {
                    "type": "string"
                },
                "image_response": {
                    "type": "string"
                },
                "mode": {
                    "type": "string",
                    "enum": [
                        "landing",
                        "text",
                        "image"
                    ]
                },
                "session_id": {
                    "type": "string"
                },
                "show_history": {
                    "type": "boolean"
                },
                "text_response": {
                    "type": "string"
                }
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "qadesk API",
	Description:      "Multi-modal question answering: typed, spoken and image-derived questions answered by a generative model.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
