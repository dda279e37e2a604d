package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Institute Catalog API",
        "description": "Multi-tenant course catalog and student roster API for institutes.",
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
        {"name": "Auth", "description": "Institute and student authentication"},
        {"name": "Courses", "description": "Tenant-scoped course catalog"},
        {"name": "Subjects", "description": "Course curricula"},
        {"name": "Students", "description": "Institute rosters"},
        {"name": "Grades", "description": "Assessment marks"},
        {"name": "Dashboard", "description": "Institute summaries"}
    ],
    "paths": {
        "/auth/institute/register": {
            "post": {
                "tags": ["Auth"],
                "summary": "Register a new institute",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/RegisterInstituteRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/auth/institute/login": {
            "post": {
                "tags": ["Auth"],
                "summary": "Institute admin login",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/LoginInstituteRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/auth/student/register": {
            "post": {
                "tags": ["Auth"],
                "summary": "Student self-registration",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/RegisterStudentRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/auth/student/login": {
            "post": {
                "tags": ["Auth"],
                "summary": "Student login",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/LoginStudentRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "403": {"description": "Pending verification", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/courses": {
            "get": {
                "tags": ["Courses"],
                "summary": "List courses",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "search", "in": "query", "type": "string"},
                    {"name": "status", "in": "query", "type": "string"},
                    {"name": "department", "in": "query", "type": "string"},
                    {"name": "degree_type", "in": "query", "type": "string"},
                    {"name": "academic_year", "in": "query", "type": "string"},
                    {"name": "assigned_department", "in": "query", "type": "string"},
                    {"name": "assigned_semester", "in": "query", "type": "integer"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "limit", "in": "query", "type": "integer"},
                    {"name": "sort", "in": "query", "type": "string"},
                    {"name": "order", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Courses"],
                "summary": "Create course",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateCourseRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Duplicate code or semester assignment", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/courses/{id}": {
            "get": {
                "tags": ["Courses"],
                "summary": "Get course detail",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "put": {
                "tags": ["Courses"],
                "summary": "Update course",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UpdateCourseRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Duplicate code or semester assignment", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "delete": {
                "tags": ["Courses"],
                "summary": "Delete course",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "References block deletion", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/courses/bulk": {
            "post": {
                "tags": ["Courses"],
                "summary": "Bulk update courses",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/BulkCourseRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Reassignment conflict", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/courses/validate-assignment": {
            "post": {
                "tags": ["Courses"],
                "summary": "Check teaching slot availability",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ValidateAssignmentRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/courses/semester-assignments": {
            "get": {
                "tags": ["Courses"],
                "summary": "List occupied teaching slots",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/courses/sync-enrollments": {
            "post": {
                "tags": ["Courses"],
                "summary": "Recompute enrollment counters",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/courses/{id}/subjects": {
            "get": {
                "tags": ["Subjects"],
                "summary": "List a course's subjects",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Subjects"],
                "summary": "Add a subject to a course",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateSubjectRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Duplicate subject code", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/subjects/{id}": {
            "put": {
                "tags": ["Subjects"],
                "summary": "Update subject",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UpdateSubjectRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "delete": {
                "tags": ["Subjects"],
                "summary": "Delete subject",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/students": {
            "get": {
                "tags": ["Students"],
                "summary": "List students",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "search", "in": "query", "type": "string"},
                    {"name": "status", "in": "query", "type": "string"},
                    {"name": "course_id", "in": "query", "type": "string"},
                    {"name": "semester", "in": "query", "type": "integer"},
                    {"name": "admission_year", "in": "query", "type": "integer"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/students/{id}": {
            "get": {
                "tags": ["Students"],
                "summary": "Get student detail",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/students/{id}/verify": {
            "post": {
                "tags": ["Students"],
                "summary": "Verify a student account",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/students/{id}/unverify": {
            "post": {
                "tags": ["Students"],
                "summary": "Revoke a student verification",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/students/bulk": {
            "post": {
                "tags": ["Students"],
                "summary": "Bulk update students",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/BulkStudentRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/students/export": {
            "get": {
                "tags": ["Students"],
                "summary": "Export the filtered roster",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "format", "in": "query", "type": "string", "description": "csv, pdf or json"}
                ],
                "responses": {
                    "200": {"description": "File download"}
                }
            }
        },
        "/students/{id}/grades": {
            "get": {
                "tags": ["Grades"],
                "summary": "List a student's grades",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/grades/upload": {
            "post": {
                "tags": ["Grades"],
                "summary": "Upload grades for a course",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UploadGradesRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/student/profile": {
            "get": {
                "tags": ["Students"],
                "summary": "Get the authenticated student's profile",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/student/grades": {
            "get": {
                "tags": ["Grades"],
                "summary": "List the authenticated student's grades",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/dashboard/stats": {
            "get": {
                "tags": ["Dashboard"],
                "summary": "Institute dashboard statistics",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "Course": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "institute_id": {"type": "string"},
                "course_name": {"type": "string"},
                "course_code": {"type": "string"},
                "department": {"type": "string"},
                "degree_type": {"type": "string"},
                "duration": {"type": "integer"},
                "total_semesters": {"type": "integer"},
                "assigned_department": {"type": "string"},
                "assigned_semester": {"type": "integer"},
                "semester_credits": {"type": "integer"},
                "status": {"type": "string"},
                "academic_year": {"type": "string"},
                "max_students": {"type": "integer"},
                "current_enrollment": {"type": "integer"},
                "created_at": {"type": "string"},
                "updated_at": {"type": "string"}
            }
        },
        "CreateCourseRequest": {
            "type": "object",
            "properties": {
                "course_name": {"type": "string"},
                "course_code": {"type": "string"},
                "description": {"type": "string"},
                "department": {"type": "string"},
                "degree_type": {"type": "string"},
                "duration": {"type": "integer"},
                "total_semesters": {"type": "integer"},
                "assigned_department": {"type": "string"},
                "assigned_semester": {"type": "integer"},
                "semester_credits": {"type": "integer"},
                "status": {"type": "string"},
                "academic_year": {"type": "string"},
                "max_students": {"type": "integer"}
            },
            "required": ["course_name", "course_code", "department", "degree_type", "duration", "total_semesters", "assigned_department", "assigned_semester", "academic_year"]
        },
        "UpdateCourseRequest": {
            "type": "object",
            "properties": {
                "course_name": {"type": "string"},
                "course_code": {"type": "string"},
                "description": {"type": "string"},
                "department": {"type": "string"},
                "degree_type": {"type": "string"},
                "duration": {"type": "integer"},
                "total_semesters": {"type": "integer"},
                "assigned_department": {"type": "string"},
                "assigned_semester": {"type": "integer"},
                "semester_credits": {"type": "integer"},
                "status": {"type": "string"},
                "academic_year": {"type": "string"},
                "max_students": {"type": "integer"}
            }
        },
        "BulkCourseRequest": {
            "type": "object",
            "properties": {
                "course_ids": {"type": "array", "items": {"type": "string"}},
                "action": {"type": "string", "description": "activate, deactivate, update_academic_year, update_semester_credits or update_assigned_department"},
                "value": {"type": "object"}
            },
            "required": ["course_ids", "action"]
        },
        "ValidateAssignmentRequest": {
            "type": "object",
            "properties": {
                "assigned_department": {"type": "string"},
                "assigned_semester": {"type": "integer"},
                "exclude_course_id": {"type": "string"}
            },
            "required": ["assigned_department", "assigned_semester"]
        },
        "CreateSubjectRequest": {
            "type": "object",
            "properties": {
                "subject_code": {"type": "string"},
                "subject_name": {"type": "string"},
                "semester": {"type": "integer"},
                "credits": {"type": "integer"},
                "prerequisites": {"type": "array", "items": {"type": "string"}}
            },
            "required": ["subject_code", "subject_name", "semester", "credits"]
        },
        "UpdateSubjectRequest": {
            "type": "object",
            "properties": {
                "subject_code": {"type": "string"},
                "subject_name": {"type": "string"},
                "semester": {"type": "integer"},
                "credits": {"type": "integer"},
                "prerequisites": {"type": "array", "items": {"type": "string"}}
            }
        },
        "BulkStudentRequest": {
            "type": "object",
            "properties": {
                "student_ids": {"type": "array", "items": {"type": "string"}},
                "action": {"type": "string", "description": "verify, unverify, activate, deactivate or update_semester"},
                "value": {"type": "object"}
            },
            "required": ["student_ids", "action"]
        },
        "UploadGradesRequest": {
            "type": "object",
            "properties": {
                "course_id": {"type": "string"},
                "grade_type": {"type": "string"},
                "grades": {
                    "type": "array",
                    "items": {
                        "type": "object",
                        "properties": {
                            "student_id": {"type": "string"},
                            "marks": {"type": "number"},
                            "comments": {"type": "string"}
                        }
                    }
                }
            },
            "required": ["course_id", "grade_type", "grades"]
        },
        "RegisterInstituteRequest": {
            "type": "object",
            "properties": {
                "institute_name": {"type": "string"},
                "institute_code": {"type": "string"},
                "email": {"type": "string"},
                "phone": {"type": "string"},
                "institute_type": {"type": "string"},
                "admin_name": {"type": "string"},
                "admin_email": {"type": "string"},
                "admin_phone": {"type": "string"},
                "password": {"type": "string"}
            },
            "required": ["institute_name", "institute_code", "email", "phone", "institute_type", "admin_name", "admin_email", "password"]
        },
        "LoginInstituteRequest": {
            "type": "object",
            "properties": {
                "institute_code": {"type": "string"},
                "admin_email": {"type": "string"},
                "password": {"type": "string"}
            },
            "required": ["institute_code", "admin_email", "password"]
        },
        "RegisterStudentRequest": {
            "type": "object",
            "properties": {
                "institute_code": {"type": "string"},
                "roll_number": {"type": "string"},
                "name": {"type": "string"},
                "email": {"type": "string"},
                "phone": {"type": "string"},
                "course_id": {"type": "string"},
                "current_semester": {"type": "integer"},
                "admission_year": {"type": "integer"},
                "academic_year": {"type": "string"},
                "password": {"type": "string"}
            },
            "required": ["institute_code", "roll_number", "name", "email", "admission_year", "password"]
        },
        "LoginStudentRequest": {
            "type": "object",
            "properties": {
                "institute_code": {"type": "string"},
                "roll_number": {"type": "string"},
                "password": {"type": "string"}
            },
            "required": ["institute_code", "roll_number", "password"]
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total_count": {"type": "integer"},
                "total_pages": {"type": "integer"},
                "has_more": {"type": "boolean"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "success": {"type": "boolean"},
                "message": {"type": "string"},
                "data": {"type": "object"},
                "errors": {"type": "object"},
                "details": {"type": "object"},
                "pagination": {"$ref": "#/definitions/Pagination"}
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
