// Package docs holds the OpenAPI description served at /api/swagger.
// Regenerate with: swag init -g cmd/server/main.go -o docs
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
        "/auth/signup": {
            "post": {
                "tags": ["auth"],
                "summary": "User signup",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "responses": {
                    "201": {"description": "Created"},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/models.ErrorResponse"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/models.ErrorResponse"}}
                }
            }
        },
        "/auth/login": {
            "post": {
                "tags": ["auth"],
                "summary": "User login",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "responses": {
                    "200": {"description": "OK"},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/models.ErrorResponse"}}
                }
            }
        },
        "/groups": {
            "get": {
                "security": [{"BearerAuth": []}],
                "tags": ["groups"],
                "summary": "List groups",
                "responses": {"200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/models.Group"}}}}
            },
            "post": {
                "security": [{"BearerAuth": []}],
                "tags": ["groups"],
                "summary": "Create group",
                "responses": {"201": {"description": "Created", "schema": {"$ref": "#/definitions/models.Group"}}}
            }
        },
        "/groups/{id}/join": {
            "post": {
                "security": [{"BearerAuth": []}],
                "tags": ["groups"],
                "summary": "Join group",
                "parameters": [{"type": "integer", "description": "Group ID", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/models.Group"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/models.ErrorResponse"}}
                }
            }
        },
        "/groups/{id}/threads": {
            "get": {
                "security": [{"BearerAuth": []}],
                "tags": ["threads"],
                "summary": "List discussion threads",
                "parameters": [{"type": "integer", "description": "Group ID", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/models.Thread"}}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/models.ErrorResponse"}}
                }
            }
        },
        "/posts": {
            "get": {
                "security": [{"BearerAuth": []}],
                "tags": ["posts"],
                "summary": "Global feed",
                "responses": {"200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/models.Post"}}}}
            }
        },
        "/docs/{path}": {
            "get": {
                "security": [{"BearerAuth": []}],
                "tags": ["documents"],
                "summary": "Read a document path",
                "parameters": [{"type": "string", "description": "Document or collection path", "name": "path", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/docstore.Snapshot"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/models.ErrorResponse"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/models.ErrorResponse"}}
                }
            }
        },
        "/ws/ticket": {
            "post": {
                "security": [{"BearerAuth": []}],
                "tags": ["realtime"],
                "summary": "Issue WebSocket ticket",
                "responses": {"200": {"description": "OK"}, "503": {"description": "Service Unavailable"}}
            }
        }
    },
    "definitions": {
        "models.ErrorResponse": {
            "type": "object",
            "properties": {
                "error": {"type": "string"},
                "code": {"type": "string"},
                "details": {"type": "string"}
            }
        },
        "models.Group": {
            "type": "object",
            "properties": {
                "id": {"type": "integer"},
                "title": {"type": "string"},
                "author": {"type": "string"},
                "cover_url": {"type": "string"},
                "description": {"type": "string"},
                "owner_id": {"type": "integer"},
                "moderation_question": {"type": "string"},
                "moderator_ids": {"type": "array", "items": {"type": "integer"}},
                "member_ids": {"type": "array", "items": {"type": "integer"}}
            }
        },
        "models.Thread": {
            "type": "object",
            "properties": {
                "id": {"type": "integer"},
                "group_id": {"type": "integer"},
                "user_id": {"type": "integer"},
                "author_name": {"type": "string"},
                "content": {"type": "string"},
                "like_count": {"type": "integer"},
                "reply_count": {"type": "integer"},
                "liked": {"type": "boolean"}
            }
        },
        "models.Post": {
            "type": "object",
            "properties": {
                "id": {"type": "integer"},
                "user_id": {"type": "integer"},
                "author_name": {"type": "string"},
                "title": {"type": "string"},
                "body": {"type": "string"}
            }
        },
        "docstore.Snapshot": {
            "type": "object",
            "properties": {
                "path": {"type": "string"},
                "read_at": {"type": "string"},
                "documents": {
                    "type": "array",
                    "items": {
                        "type": "object",
                        "properties": {
                            "id": {"type": "string"},
                            "path": {"type": "string"},
                            "data": {"type": "object"},
                            "update_time": {"type": "string"}
                        }
                    }
                }
            }
        }
    },
    "securityDefinitions": {
        "BearerAuth": {
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/api",
	Schemes:          []string{},
	Title:            "Bookclub API",
	Description:      "Book clubs, discussion threads, a global feed and realtime snapshot listeners.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
