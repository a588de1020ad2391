package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Smart Plan API",
        "description": "Weekly study plan generation with optional AI enrichment",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http",
        "https"
    ],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "tags": [
        {"name": "StudyPlans", "description": "Weekly study plan generation and history"},
        {"name": "System", "description": "Probes and metrics"}
    ],
    "paths": {
        "/study-plans/generate": {
            "post": {
                "tags": ["StudyPlans"],
                "summary": "Generate a weekly study plan",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/GenerateStudyPlanRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Validation error", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/study-plans/batch": {
            "post": {
                "tags": ["StudyPlans"],
                "summary": "Generate deterministic plans for several students",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/BatchGenerateRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/study-plans": {
            "get": {
                "tags": ["StudyPlans"],
                "summary": "List stored study plans",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "student_id", "in": "query", "type": "string"},
                    {"name": "week", "in": "query", "type": "integer"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "page_size", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/study-plans/latest": {
            "get": {
                "tags": ["StudyPlans"],
                "summary": "Newest stored plan for a student",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "student_id", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/study-plans/{id}": {
            "get": {
                "tags": ["StudyPlans"],
                "summary": "Get a stored study plan",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "delete": {
                "tags": ["StudyPlans"],
                "summary": "Delete a stored study plan",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "Deleted"}
                }
            }
        },
        "/study-plans/{id}/export": {
            "get": {
                "tags": ["StudyPlans"],
                "summary": "Download a stored plan as PDF or CSV",
                "produces": ["application/pdf", "text/csv"],
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "format", "in": "query", "type": "string", "enum": ["pdf", "csv"], "default": "pdf"}
                ],
                "responses": {
                    "200": {"description": "File", "schema": {"type": "file"}}
                }
            }
        },
        "/study-plans/{id}/share": {
            "post": {
                "tags": ["StudyPlans"],
                "summary": "Create a signed share link",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/shared/study-plans/{token}": {
            "get": {
                "tags": ["StudyPlans"],
                "summary": "Read a shared study plan",
                "parameters": [
                    {"name": "token", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "410": {"description": "Link invalid or expired", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/health": {
            "get": {
                "tags": ["System"],
                "summary": "Liveness probe",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/ready": {
            "get": {
                "tags": ["System"],
                "summary": "Readiness probe",
                "responses": {
                    "200": {"description": "Ready"},
                    "503": {"description": "A dependency is unreachable"}
                }
            }
        }
    },
    "definitions": {
        "TimeRange": {
            "type": "object",
            "properties": {
                "from": {"type": "string", "example": "08:00"},
                "to": {"type": "string", "example": "15:00"}
            }
        },
        "DaySchedule": {
            "type": "object",
            "required": ["day"],
            "properties": {
                "day": {"type": "string", "enum": ["Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"]},
                "school": {"$ref": "#/definitions/TimeRange"},
                "rest": {"$ref": "#/definitions/TimeRange"},
                "dinner": {"$ref": "#/definitions/TimeRange"}
            }
        },
        "SubjectRequest": {
            "type": "object",
            "required": ["subject", "priority"],
            "properties": {
                "subject": {"type": "string"},
                "priority": {"type": "string", "enum": ["high", "medium", "low"]}
            }
        },
        "GenerateStudyPlanRequest": {
            "type": "object",
            "required": ["schedules"],
            "properties": {
                "student_id": {"type": "string"},
                "week": {"type": "integer"},
                "light_day": {"type": "string"},
                "enrich": {"type": "boolean"},
                "schedules": {"type": "array", "minItems": 7, "maxItems": 7, "items": {"$ref": "#/definitions/DaySchedule"}},
                "subjects": {"type": "array", "items": {"$ref": "#/definitions/SubjectRequest"}}
            }
        },
        "BatchGenerateRequest": {
            "type": "object",
            "required": ["items"],
            "properties": {
                "items": {"type": "array", "items": {"$ref": "#/definitions/GenerateStudyPlanRequest"}}
            }
        },
        "StudySession": {
            "type": "object",
            "properties": {
                "from": {"type": "string"},
                "to": {"type": "string"},
                "subject": {"type": "string"}
            }
        },
        "DayPlan": {
            "type": "object",
            "properties": {
                "day": {"type": "string"},
                "school_time": {"$ref": "#/definitions/TimeRange"},
                "study_sessions": {"type": "array", "items": {"$ref": "#/definitions/StudySession"}}
            }
        },
        "WeeklyPlan": {
            "type": "object",
            "properties": {
                "week": {"type": "integer"},
                "timezone": {"type": "string"},
                "days": {"type": "array", "items": {"$ref": "#/definitions/DayPlan"}},
                "weekly_summary": {
                    "type": "object",
                    "properties": {
                        "focus_subjects": {"type": "array", "items": {"type": "string"}},
                        "ai_tip": {"type": "string"}
                    }
                }
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
