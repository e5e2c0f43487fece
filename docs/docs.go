// Package docs registers the OpenAPI description served under /swagger.
// It is regenerated from the handler annotations by the go:generate
// directive in cmd/server.
package docs

import "github.com/swaggo/swag/v2"

const docTemplate = `{
    "schemes": [],
    "swagger": "2.0",
    "info": {
        "description": "{{.Description}}",
        "title": "{{.Title}}",
        "license": {
            "name": "Apache 2.0",
            "url": "http://www.apache.org/licenses/LICENSE-2.0.html"
        },
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/api/v1/audio/{key}": {
            "get": {
                "description": "Stream a stored paragraph when the audio store has no public URL",
                "produces": ["audio/mpeg", "audio/wav"],
                "tags": ["audio"],
                "summary": "Download narration audio",
                "parameters": [
                    {"type": "string", "description": "Audio object key", "name": "key", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "file"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/dto.ErrorEnvelope"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/dto.ErrorEnvelope"}}
                }
            }
        },
        "/api/v1/story/audio/batch": {
            "post": {
                "security": [{"BearerAuth": []}],
                "description": "Synthesize one batch of paragraph audio, consuming one unit of monthly quota",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["story"],
                "summary": "Narrate a story",
                "parameters": [
                    {"description": "Story and voice", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/dto.NarrateStoryRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"allOf": [{"$ref": "#/definitions/dto.Response"}, {"type": "object", "properties": {"data": {"$ref": "#/definitions/dto.NarrationResponse"}}}]}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/dto.ErrorEnvelope"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/dto.ErrorEnvelope"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/dto.ErrorEnvelope"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/dto.ErrorEnvelope"}},
                    "429": {"description": "Too Many Requests", "schema": {"$ref": "#/definitions/dto.ErrorEnvelope"}},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/dto.ErrorEnvelope"}}
                }
            }
        },
        "/api/v1/voice/access": {
            "get": {
                "security": [{"BearerAuth": []}],
                "description": "Report the voices the account can reach and the synthesis quota left this month",
                "produces": ["application/json"],
                "tags": ["voice"],
                "summary": "Get voice access",
                "responses": {
                    "200": {"description": "OK", "schema": {"allOf": [{"$ref": "#/definitions/dto.Response"}, {"type": "object", "properties": {"data": {"$ref": "#/definitions/dto.VoiceAccessResponse"}}}]}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/dto.ErrorEnvelope"}},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/dto.ErrorEnvelope"}}
                }
            }
        },
        "/api/v1/voice/preferred": {
            "post": {
                "security": [{"BearerAuth": []}],
                "description": "Store the account's narration voice. A free account may lock one voice besides the default.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["voice"],
                "summary": "Set preferred voice",
                "parameters": [
                    {"description": "Voice key, catalog UUID or vendor voice id", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/dto.SetPreferredVoiceRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"allOf": [{"$ref": "#/definitions/dto.Response"}, {"type": "object", "properties": {"data": {"$ref": "#/definitions/dto.PreferredVoiceResponse"}}}]}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/dto.ErrorEnvelope"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/dto.ErrorEnvelope"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/dto.ErrorEnvelope"}},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/dto.ErrorEnvelope"}}
                }
            }
        },
        "/health": {
            "get": {
                "description": "Report liveness and build information. Answers 503 when the database does not respond.",
                "produces": ["application/json"],
                "tags": ["system"],
                "summary": "Health check",
                "responses": {
                    "200": {"description": "OK", "schema": {"allOf": [{"$ref": "#/definitions/dto.Response"}, {"type": "object", "properties": {"data": {"$ref": "#/definitions/handler.HealthResponse"}}}]}},
                    "503": {"description": "Service Unavailable", "schema": {"allOf": [{"$ref": "#/definitions/dto.ErrorEnvelope"}, {"type": "object", "properties": {"data": {"$ref": "#/definitions/handler.HealthResponse"}}}]}}
                }
            }
        }
    },
    "definitions": {
        "dto.ErrorEnvelope": {
            "allOf": [{"$ref": "#/definitions/dto.Response"}, {"type": "object", "properties": {"error": {"$ref": "#/definitions/dto.ErrorInfo"}}}]
        },
        "dto.ErrorInfo": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "request_id": {"type": "string"},
                "details": {"type": "array", "items": {"$ref": "#/definitions/dto.ValidationDetail"}}
            }
        },
        "dto.ValidationDetail": {
            "type": "object",
            "properties": {
                "field": {"type": "string"},
                "message": {"type": "string"}
            }
        },
        "dto.Response": {
            "type": "object",
            "properties": {
                "success": {"type": "boolean"},
                "data": {},
                "error": {"$ref": "#/definitions/dto.ErrorInfo"}
            }
        },
        "dto.NarrateStoryRequest": {
            "type": "object",
            "required": ["storyId", "voiceId"],
            "properties": {
                "storyId": {"type": "string", "format": "uuid"},
                "voiceId": {"type": "string"}
            }
        },
        "dto.SetPreferredVoiceRequest": {
            "type": "object",
            "required": ["voiceId"],
            "properties": {
                "voiceId": {"type": "string"}
            }
        },
        "dto.PreferredVoiceResponse": {
            "type": "object",
            "properties": {
                "voiceId": {"type": "string"}
            }
        },
        "dto.VoiceAccessResponse": {
            "type": "object",
            "properties": {
                "isPremium": {"type": "boolean"},
                "unlimited": {"type": "boolean"},
                "defaultVoiceId": {"type": "string"},
                "lockedVoiceId": {"type": "string"},
                "maxVoices": {"type": "integer", "description": "-1 for unlimited"},
                "quotaRemaining": {"type": "integer", "description": "-1 for unlimited"},
                "resetsAt": {"type": "string", "format": "date-time"}
            }
        },
        "dto.NarratedParagraphResponse": {
            "type": "object",
            "properties": {
                "index": {"type": "integer"},
                "text": {"type": "string"},
                "audioUrl": {"type": "string"}
            }
        },
        "dto.NarrationResponse": {
            "type": "object",
            "properties": {
                "paragraphs": {"type": "array", "items": {"$ref": "#/definitions/dto.NarratedParagraphResponse"}},
                "totalParagraphs": {"type": "integer"},
                "wasTruncated": {"type": "boolean"},
                "voiceId": {"type": "string"},
                "usedProvider": {"type": "string"},
                "preferredProvider": {"type": "string"},
                "providerStatus": {"type": "string", "enum": ["degraded"]}
            }
        },
        "handler.HealthResponse": {
            "type": "object",
            "properties": {
                "status": {"type": "string"},
                "database": {"type": "string"},
                "version": {"type": "string"},
                "go_version": {"type": "string"},
                "uptime": {"type": "string"}
            }
        }
    },
    "securityDefinitions": {
        "BearerAuth": {
            "description": "Bearer token authentication. Format: \"Bearer {token}\"",
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:8080",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Storyvoice API",
	Description:      "Voice quota accounting and story narration backed by failover between speech vendors.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
