// Package docs holds the OpenAPI document served by the Swagger UI. Regenerate with swag init -g cmd/api/main.go.
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
        "/api/notes": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["notes"],
                "summary": "Create or update a note",
                "parameters": [
                    {
                        "description": "Note to save",
                        "name": "note",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/handler.saveNoteRequest"}
                    }
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/handler.saveNoteResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handler.errorPayload"}},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/handler.errorPayload"}}
                }
            }
        },
        "/api/notes/{name}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["notes"],
                "summary": "Fetch a note",
                "parameters": [
                    {"type": "string", "description": "Note name", "name": "name", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/model.NoteView"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/handler.errorPayload"}}
                }
            }
        },
        "/api/notes/{name}/access": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["notes"],
                "summary": "Unlock a protected note",
                "parameters": [
                    {"type": "string", "description": "Note name", "name": "name", "in": "path", "required": true},
                    {
                        "description": "Password",
                        "name": "body",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/handler.accessNoteRequest"}
                    }
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/model.NoteView"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handler.errorPayload"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/handler.errorPayload"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/handler.errorPayload"}}
                }
            }
        }
    },
    "definitions": {
        "handler.accessNoteRequest": {
            "type": "object",
            "properties": {"password": {"type": "string"}}
        },
        "handler.errorEnvelope": {
            "type": "object",
            "properties": {"code": {"type": "string"}, "message": {"type": "string"}}
        },
        "handler.errorPayload": {
            "type": "object",
            "properties": {
                "error": {"$ref": "#/definitions/handler.errorEnvelope"},
                "message": {"type": "string"},
                "request_id": {"type": "string"}
            }
        },
        "handler.saveNoteRequest": {
            "type": "object",
            "properties": {
                "content": {"type": "string"},
                "expiresIn": {"type": "string", "example": "24"},
                "name": {"type": "string"},
                "password": {"type": "string"}
            }
        },
        "handler.saveNoteResponse": {
            "type": "object",
            "properties": {"message": {"type": "string"}, "name": {"type": "string"}}
        },
        "model.NoteView": {
            "type": "object",
            "properties": {
                "content": {"type": "string"},
                "createdAt": {"type": "string"},
                "expiresAt": {"type": "string"},
                "hasPassword": {"type": "boolean"},
                "name": {"type": "string"}
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
	Title:            "TextShare API",
	Description:      "Share text notes by name, optionally protected by a password or set to expire.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
