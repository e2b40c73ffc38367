package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Class Builder API",
        "description": "Builds balanced classes from a student roster.",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "security": [{"BearerAuth": []}],
    "tags": [
        {"name": "ClassBuilder", "description": "Roster parsing, generation, proposals and saved generations"},
        {"name": "Exports", "description": "Asynchronous xlsx, csv and pdf exports"}
    ],
    "paths": {
        "/class-builder/rosters/parse": {
            "post": {
                "tags": ["ClassBuilder"],
                "summary": "Parse a student roster",
                "consumes": ["multipart/form-data", "application/json"],
                "parameters": [
                    {"name": "file", "in": "formData", "type": "file"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "413": {"description": "Roster file too large"},
                    "415": {"description": "Unsupported roster format"}
                }
            }
        },
        "/class-builder/rosters/template": {
            "get": {
                "tags": ["ClassBuilder"],
                "summary": "Download the roster import template",
                "produces": ["text/csv", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"],
                "parameters": [
                    {"name": "format", "in": "query", "type": "string", "enum": ["csv", "xlsx"]}
                ],
                "responses": {
                    "200": {"description": "Template file"},
                    "415": {"description": "Unsupported format"}
                }
            }
        },
        "/class-builder/generate": {
            "post": {
                "tags": ["ClassBuilder"],
                "summary": "Generate a class proposal",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/GenerateClassesRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Invalid payload"}
                }
            }
        },
        "/class-builder/proposals/{id}": {
            "get": {
                "tags": ["ClassBuilder"],
                "summary": "Get a stored proposal",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "410": {"description": "Proposal expired"}
                }
            }
        },
        "/class-builder/proposals/{id}/moves": {
            "post": {
                "tags": ["ClassBuilder"],
                "summary": "Move a student between classes",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/MoveStudentRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "410": {"description": "Proposal expired"},
                    "422": {"description": "Move could not be applied"}
                }
            }
        },
        "/class-builder/proposals/{id}/exports": {
            "post": {
                "tags": ["Exports"],
                "summary": "Queue an export of a proposal",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateExportRequest"}}
                ],
                "responses": {
                    "202": {"description": "Accepted", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/class-builder/generations": {
            "get": {
                "tags": ["ClassBuilder"],
                "summary": "List saved generations",
                "parameters": [
                    {"name": "name", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "pageSize", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["ClassBuilder"],
                "summary": "Save a proposal as a versioned generation",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SaveGenerationRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "403": {"description": "Admins only"}
                }
            }
        },
        "/class-builder/generations/{id}": {
            "delete": {
                "tags": ["ClassBuilder"],
                "summary": "Delete a saved generation",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "Deleted"},
                    "404": {"description": "Not found"}
                }
            }
        },
        "/class-builder/generations/{id}/placements": {
            "get": {
                "tags": ["ClassBuilder"],
                "summary": "Get the classes of a saved generation",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/class-builder/generations/{id}/exports": {
            "post": {
                "tags": ["Exports"],
                "summary": "Queue an export of a saved generation",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateExportRequest"}}
                ],
                "responses": {
                    "202": {"description": "Accepted", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/class-builder/exports/{jobId}": {
            "get": {
                "tags": ["Exports"],
                "summary": "Export job status",
                "parameters": [
                    {"name": "jobId", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/class-builder/exports/download/{token}": {
            "get": {
                "tags": ["Exports"],
                "summary": "Download a finished export",
                "security": [],
                "parameters": [
                    {"name": "token", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Export file"},
                    "403": {"description": "Invalid or expired token"}
                }
            }
        }
    },
    "definitions": {
        "StudentInput": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "firstName": {"type": "string"},
                "surname": {"type": "string"},
                "fullName": {"type": "string"},
                "class": {"type": "string"},
                "gender": {"type": "string"},
                "academic": {"type": "string"},
                "behaviour": {"type": "string"},
                "pairRequest": {"type": "string"},
                "separateRequest": {"type": "string"}
            }
        },
        "GenerateClassesRequest": {
            "type": "object",
            "required": ["students"],
            "properties": {
                "students": {"type": "array", "items": {"$ref": "#/definitions/StudentInput"}},
                "yearLevels": {"type": "array", "items": {"type": "string"}},
                "totalClasses": {"type": "integer"},
                "compositeClasses": {"type": "integer"},
                "classSize": {
                    "type": "object",
                    "properties": {
                        "min": {"type": "integer"},
                        "max": {"type": "integer"}
                    }
                },
                "seed": {"type": "integer"}
            }
        },
        "MoveStudentRequest": {
            "type": "object",
            "required": ["studentId", "sourceGroup", "destGroup"],
            "properties": {
                "studentId": {"type": "string"},
                "sourceGroup": {"type": "string"},
                "sourceClass": {"type": "integer"},
                "destGroup": {"type": "string"},
                "destClass": {"type": "integer"},
                "position": {"type": "integer"}
            }
        },
        "SaveGenerationRequest": {
            "type": "object",
            "required": ["proposalId", "name"],
            "properties": {
                "proposalId": {"type": "string"},
                "name": {"type": "string"}
            }
        },
        "CreateExportRequest": {
            "type": "object",
            "required": ["format"],
            "properties": {
                "format": {"type": "string", "enum": ["xlsx", "csv", "pdf"]}
            }
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total_count": {"type": "integer"}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "pagination": {"$ref": "#/definitions/Pagination"},
                "meta": {"type": "object"}
            }
        }
    }
}`

type swaggerDoc struct{}

// ReadDoc returns the Swagger document.
func (s *swaggerDoc) ReadDoc() string {
	return docTemplate
}

func init() {
	swag.Register(swag.Name, &swaggerDoc{})
}
