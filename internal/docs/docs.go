// Package docs registers the OpenAPI document served under /docs.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "securityDefinitions": {
        "session": {"type": "apiKey", "in": "header", "name": "Cookie"}
    },
    "paths": {
        "/auth/register": {
            "post": {
                "tags": ["auth"],
                "summary": "Register with e-mail and password",
                "parameters": [{"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/RegisterInput"}}],
                "responses": {
                    "200": {"description": "Verification mail sent", "schema": {"$ref": "#/definitions/Message"}},
                    "400": {"description": "Duplicate e-mail or invalid body", "schema": {"$ref": "#/definitions/Message"}}
                }
            }
        },
        "/auth/login": {
            "post": {
                "tags": ["auth"],
                "summary": "Log in and start a fresh session",
                "parameters": [{"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/LoginInput"}}],
                "responses": {
                    "200": {"description": "Logged in user", "schema": {"$ref": "#/definitions/User"}},
                    "401": {"description": "Wrong credentials or unverified e-mail", "schema": {"$ref": "#/definitions/Message"}}
                }
            }
        },
        "/auth/google": {
            "post": {
                "tags": ["auth"],
                "summary": "Log in with a Google access token",
                "parameters": [{"in": "body", "name": "body", "required": true, "schema": {"type": "object", "properties": {"atoken": {"type": "string"}}}}],
                "responses": {
                    "200": {"description": "Logged in user", "schema": {"$ref": "#/definitions/User"}},
                    "401": {"description": "Token rejected by the provider", "schema": {"$ref": "#/definitions/Message"}}
                }
            }
        },
        "/auth/autologin": {
            "post": {
                "tags": ["auth"],
                "summary": "Revive a retained auto-login session",
                "responses": {
                    "200": {"description": "Logged in user", "schema": {"$ref": "#/definitions/User"}},
                    "404": {"description": "Please log in!", "schema": {"$ref": "#/definitions/Message"}}
                }
            }
        },
        "/auth/closeapp": {
            "post": {"tags": ["auth"], "summary": "Mark the session logged out, keeping it for auto-login", "responses": {"200": {"description": "Session retained"}, "204": {"description": "Session destroyed"}}}
        },
        "/auth/logout": {
            "post": {"tags": ["auth"], "summary": "Destroy the session", "responses": {"204": {"description": "Logged out"}}}
        },
        "/auth/confirmation/{email}/{token}": {
            "get": {
                "tags": ["auth"],
                "summary": "Confirm an e-mail address",
                "parameters": [
                    {"in": "path", "name": "email", "required": true, "type": "string"},
                    {"in": "path", "name": "token", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Verified", "schema": {"$ref": "#/definitions/Message"}},
                    "401": {"description": "Unknown or expired verification", "schema": {"$ref": "#/definitions/Message"}}
                }
            }
        },
        "/auth/resend/{email}": {
            "get": {
                "tags": ["auth"],
                "summary": "Send a new verification mail",
                "parameters": [{"in": "path", "name": "email", "required": true, "type": "string"}],
                "responses": {"200": {"description": "Mail sent", "schema": {"$ref": "#/definitions/Message"}}, "400": {"description": "Unknown e-mail", "schema": {"$ref": "#/definitions/Message"}}}
            }
        },
        "/users": {
            "get": {"tags": ["users"], "summary": "List users (admin)", "security": [{"session": []}], "responses": {"200": {"description": "Users", "headers": {"x-total-count": {"type": "integer"}}, "schema": {"type": "array", "items": {"$ref": "#/definitions/User"}}}}},
            "post": {"tags": ["users"], "summary": "Create a user (admin)", "security": [{"session": []}], "responses": {"200": {"description": "Created", "schema": {"$ref": "#/definitions/User"}}}}
        },
        "/users/{id}": {
            "get": {"tags": ["users"], "summary": "Get a user", "security": [{"session": []}], "parameters": [{"$ref": "#/parameters/id"}], "responses": {"200": {"description": "User", "schema": {"$ref": "#/definitions/User"}}, "404": {"description": "Not found"}}},
            "patch": {"tags": ["users"], "summary": "Modify a user (admin)", "security": [{"session": []}], "parameters": [{"$ref": "#/parameters/id"}], "responses": {"200": {"description": "Modified", "schema": {"$ref": "#/definitions/User"}}}},
            "delete": {"tags": ["users"], "summary": "Delete a user (admin)", "security": [{"session": []}], "parameters": [{"$ref": "#/parameters/id"}], "responses": {"204": {"description": "Deleted"}, "409": {"description": "Still referenced"}}}
        },
        "/users/profile/{id}": {
            "patch": {"tags": ["users"], "summary": "Modify your own profile", "security": [{"session": []}], "parameters": [{"$ref": "#/parameters/id"}], "responses": {"200": {"description": "Modified", "schema": {"$ref": "#/definitions/User"}}, "403": {"description": "Not your profile"}}}
        },
        "/users/keyword/{keyword}": {
            "get": {"tags": ["users"], "summary": "Search users by name or e-mail (admin)", "security": [{"session": []}], "parameters": [{"in": "path", "name": "keyword", "required": true, "type": "string"}], "responses": {"200": {"description": "Users"}}}
        },
        "/categories": {
            "get": {"tags": ["categories"], "summary": "List categories", "security": [{"session": []}], "responses": {"200": {"description": "Categories"}}},
            "post": {"tags": ["categories"], "summary": "Create a category (admin)", "security": [{"session": []}], "responses": {"200": {"description": "Created"}}}
        },
        "/categories/{id}": {
            "get": {"tags": ["categories"], "summary": "Get a category", "security": [{"session": []}], "parameters": [{"$ref": "#/parameters/id"}], "responses": {"200": {"description": "Category"}}},
            "patch": {"tags": ["categories"], "summary": "Modify a category (admin)", "security": [{"session": []}], "parameters": [{"$ref": "#/parameters/id"}], "responses": {"200": {"description": "Modified"}}},
            "delete": {"tags": ["categories"], "summary": "Delete a category (admin)", "security": [{"session": []}], "parameters": [{"$ref": "#/parameters/id"}], "responses": {"204": {"description": "Deleted"}, "409": {"description": "Products still use it"}}}
        },
        "/products": {
            "get": {"tags": ["products"], "summary": "List products", "security": [{"session": []}], "responses": {"200": {"description": "Products"}}},
            "post": {"tags": ["products"], "summary": "Create a product (sp, admin)", "security": [{"session": []}], "responses": {"200": {"description": "Created"}, "409": {"description": "Unknown category_id"}}}
        },
        "/products/{id}": {
            "get": {"tags": ["products"], "summary": "Get a product", "security": [{"session": []}], "parameters": [{"$ref": "#/parameters/id"}], "responses": {"200": {"description": "Product"}}},
            "patch": {"tags": ["products"], "summary": "Modify a product (sp, admin)", "security": [{"session": []}], "parameters": [{"$ref": "#/parameters/id"}], "responses": {"200": {"description": "Modified"}}},
            "delete": {"tags": ["products"], "summary": "Delete a product (admin)", "security": [{"session": []}], "parameters": [{"$ref": "#/parameters/id"}], "responses": {"200": {"description": "Deleted", "headers": {"x-total-count": {"type": "integer"}}}, "409": {"description": "Offers still use it"}}}
        },
        "/offers": {
            "get": {"tags": ["offers"], "summary": "List offers", "responses": {"200": {"description": "Offers", "headers": {"x-total-count": {"type": "integer"}}}}},
            "post": {"tags": ["offers"], "summary": "Create an offer (sp, admin)", "security": [{"session": []}], "responses": {"200": {"description": "Created", "headers": {"x-total-count": {"type": "integer"}}}}}
        },
        "/offers/{id}": {
            "get": {"tags": ["offers"], "summary": "Get an offer", "parameters": [{"$ref": "#/parameters/id"}], "responses": {"200": {"description": "Offer"}}},
            "patch": {"tags": ["offers"], "summary": "Modify an offer (admin)", "security": [{"session": []}], "parameters": [{"$ref": "#/parameters/id"}], "responses": {"200": {"description": "Modified"}, "403": {"description": "Immutable field in body"}}},
            "delete": {"tags": ["offers"], "summary": "Delete an offer (admin)", "security": [{"session": []}], "parameters": [{"$ref": "#/parameters/id"}], "responses": {"200": {"description": "Deleted"}, "409": {"description": "Orders still use it"}}}
        },
        "/offers/myoffer/{id}": {
            "get": {"tags": ["offers"], "summary": "List your own offers (sp, admin)", "security": [{"session": []}], "parameters": [{"$ref": "#/parameters/id"}], "responses": {"200": {"description": "Joined offers"}}},
            "patch": {"tags": ["offers"], "summary": "Modify your own offer", "security": [{"session": []}], "parameters": [{"$ref": "#/parameters/id"}], "responses": {"200": {"description": "Modified"}, "403": {"description": "Not your offer"}}},
            "delete": {"tags": ["offers"], "summary": "Delete your own offer", "security": [{"session": []}], "parameters": [{"$ref": "#/parameters/id"}], "responses": {"200": {"description": "Deleted"}, "403": {"description": "Not your offer"}}}
        },
        "/offers/{offset}/{limit}/{sortingfield}/{filter}": {
            "get": {
                "tags": ["offers"],
                "summary": "Filter, sort and paginate the joined offers",
                "parameters": [
                    {"in": "path", "name": "offset", "required": true, "type": "integer"},
                    {"in": "path", "name": "limit", "required": true, "type": "integer", "description": "0 returns every match"},
                    {"in": "path", "name": "sortingfield", "required": true, "type": "string", "description": "JSON path into the joined offer, prefix - for descending"},
                    {"in": "path", "name": "filter", "required": true, "type": "string", "description": "case-insensitive regular expression, * matches everything"}
                ],
                "responses": {"200": {"description": "Page of offers", "headers": {"x-total-count": {"type": "integer", "description": "matches before pagination"}}}, "400": {"description": "Bad paging or regular expression"}}
            }
        },
        "/offers/active/{offset}/{limit}/{sortingfield}/{filter}": {
            "get": {"tags": ["offers"], "summary": "Same as the paginated listing, restricted to active offers", "responses": {"200": {"description": "Page of offers"}}}
        },
        "/orders": {
            "get": {"tags": ["orders"], "summary": "List orders (all for admins, own otherwise)", "security": [{"session": []}], "responses": {"200": {"description": "Orders"}}},
            "post": {"tags": ["orders"], "summary": "Place an order", "security": [{"session": []}], "responses": {"200": {"description": "Created"}, "409": {"description": "Unknown offer_id"}}}
        },
        "/orders/{id}": {
            "get": {"tags": ["orders"], "summary": "Get an order", "security": [{"session": []}], "parameters": [{"$ref": "#/parameters/id"}], "responses": {"200": {"description": "Order"}}},
            "patch": {"tags": ["orders"], "summary": "Modify an order", "security": [{"session": []}], "parameters": [{"$ref": "#/parameters/id"}], "responses": {"200": {"description": "Modified"}}},
            "delete": {"tags": ["orders"], "summary": "Delete an order", "security": [{"session": []}], "parameters": [{"$ref": "#/parameters/id"}], "responses": {"200": {"description": "Deleted"}}}
        },
        "/orders/{id}/{detail_id}": {
            "delete": {"tags": ["orders"], "summary": "Remove one line of an order", "security": [{"session": []}], "parameters": [{"$ref": "#/parameters/id"}, {"in": "path", "name": "detail_id", "required": true, "type": "string"}], "responses": {"200": {"description": "Order without the line"}}}
        },
        "/cart": {
            "get": {"tags": ["cart"], "summary": "Show the session cart", "security": [{"session": []}], "responses": {"200": {"description": "Cart items"}}},
            "post": {"tags": ["cart"], "summary": "Add an offer to the cart", "security": [{"session": []}], "responses": {"200": {"description": "Cart items"}}},
            "delete": {"tags": ["cart"], "summary": "Empty the cart", "security": [{"session": []}], "responses": {"204": {"description": "Emptied"}}}
        }
    },
    "parameters": {
        "id": {"in": "path", "name": "id", "required": true, "type": "string", "description": "20 character entity id"}
    },
    "definitions": {
        "Message": {
            "type": "object",
            "properties": {"status": {"type": "integer"}, "message": {"type": "string"}, "warning": {"type": "string"}}
        },
        "RegisterInput": {
            "type": "object",
            "required": ["email", "password"],
            "properties": {"name": {"type": "string"}, "email": {"type": "string"}, "password": {"type": "string"}}
        },
        "LoginInput": {
            "type": "object",
            "required": ["email", "password"],
            "properties": {"email": {"type": "string"}, "password": {"type": "string"}}
        },
        "User": {
            "type": "object",
            "properties": {
                "_id": {"type": "string"},
                "name": {"type": "string"},
                "email": {"type": "string"},
                "email_verified": {"type": "boolean"},
                "auto_login": {"type": "boolean"},
                "roles": {"type": "array", "items": {"type": "string"}},
                "picture": {"type": "string"}
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
	Title:            "Agromarket API",
	Description:      "Marketplace for agricultural offers: accounts, catalog, offers, orders and a session cart.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
