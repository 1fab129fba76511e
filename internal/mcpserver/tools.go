// internal/mcpserver/tools.go
package mcpserver

import (
	"context"
	"encoding/json"

	apperrors "loan-origination/internal/common/errors"
	"loan-origination/internal/common/logger"
	"loan-origination/internal/models"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Users is the user management surface exposed as tools.
type Users interface {
	CreateUser(ctx context.Context, in models.CreateUserInput) (*models.User, error)
	QueryUsers(ctx context.Context, filter models.UserFilter, opts models.QueryOptions) (models.PaginatedResponse[models.User], error)
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	UpdateUserByID(ctx context.Context, id int64, in models.UpdateUserInput) (*models.User, error)
	DeleteUserByID(ctx context.Context, id int64) error
}

type CreateUserArgs struct {
	Email    string `json:"email" jsonschema:"email address of the new user"`
	Password string `json:"password" jsonschema:"at least 8 characters with a letter and a number"`
	Name     string `json:"name" jsonschema:"display name"`
	Role     string `json:"role" jsonschema:"USER or ADMIN"`
}

type QueryUsersArgs struct {
	Name   string `json:"name,omitempty" jsonschema:"exact name filter"`
	Role   string `json:"role,omitempty" jsonschema:"exact role filter"`
	SortBy string `json:"sortBy,omitempty" jsonschema:"field:asc|desc, comma separated"`
	Limit  int    `json:"limit,omitempty" jsonschema:"page size, default 10"`
	Page   int    `json:"page,omitempty" jsonschema:"page number, default 1"`
}

type UserIDArgs struct {
	UserID int64 `json:"userId" jsonschema:"numeric user id"`
}

type UpdateUserArgs struct {
	UserID   int64   `json:"userId" jsonschema:"numeric user id"`
	Name     *string `json:"name,omitempty"`
	Email    *string `json:"email,omitempty"`
	Password *string `json:"password,omitempty"`
}

// toolNames lists every registered tool. Calls to anything else are rejected
// before reaching the protocol server.
var toolNames = map[string]bool{
	"user_create":    true,
	"user_get_all":   true,
	"user_get_by_id": true,
	"user_update":    true,
	"user_delete":    true,
}

type userTools struct {
	users  Users
	logger logger.Logger
}

func (t *userTools) register(s *mcp.Server) {
	mcp.AddTool(s, &mcp.Tool{
		Name:        "user_create",
		Title:       "Create User",
		Description: "Create a new user (admin only)",
	}, t.create)
	mcp.AddTool(s, &mcp.Tool{
		Name:        "user_get_all",
		Title:       "Get All Users",
		Description: "Get all users with optional filters and pagination",
	}, t.list)
	mcp.AddTool(s, &mcp.Tool{
		Name:        "user_get_by_id",
		Title:       "Get User By ID",
		Description: "Get a single user by their ID",
	}, t.get)
	mcp.AddTool(s, &mcp.Tool{
		Name:        "user_update",
		Title:       "Update User",
		Description: "Update user information by ID",
	}, t.update)
	mcp.AddTool(s, &mcp.Tool{
		Name:        "user_delete",
		Title:       "Delete User",
		Description: "Delete a user by their ID",
	}, t.delete)
}

func (t *userTools) create(ctx context.Context, _ *mcp.CallToolRequest, in CreateUserArgs) (*mcp.CallToolResult, any, error) {
	u, err := t.users.CreateUser(ctx, models.CreateUserInput{
		Email:    in.Email,
		Password: in.Password,
		Name:     in.Name,
		Role:     models.Role(in.Role),
	})
	return t.result("user_create", u, err)
}

func (t *userTools) list(ctx context.Context, _ *mcp.CallToolRequest, in QueryUsersArgs) (*mcp.CallToolResult, any, error) {
	opts := models.QueryOptions{SortBy: in.SortBy, Limit: in.Limit, Page: in.Page}.Normalize()
	page, err := t.users.QueryUsers(ctx, models.UserFilter{Name: in.Name, Role: models.Role(in.Role)}, opts)
	if err != nil {
		return t.result("user_get_all", nil, err)
	}
	return t.result("user_get_all", map[string]interface{}{"users": page}, nil)
}

func (t *userTools) get(ctx context.Context, _ *mcp.CallToolRequest, in UserIDArgs) (*mcp.CallToolResult, any, error) {
	u, err := t.users.GetUserByID(ctx, in.UserID)
	return t.result("user_get_by_id", u, err)
}

func (t *userTools) update(ctx context.Context, _ *mcp.CallToolRequest, in UpdateUserArgs) (*mcp.CallToolResult, any, error) {
	u, err := t.users.UpdateUserByID(ctx, in.UserID, models.UpdateUserInput{
		Name:     in.Name,
		Email:    in.Email,
		Password: in.Password,
	})
	return t.result("user_update", u, err)
}

func (t *userTools) delete(ctx context.Context, _ *mcp.CallToolRequest, in UserIDArgs) (*mcp.CallToolResult, any, error) {
	if err := t.users.DeleteUserByID(ctx, in.UserID); err != nil {
		return t.result("user_delete", nil, err)
	}
	return t.result("user_delete", map[string]bool{"success": true}, nil)
}

// result wraps a tool outcome. Failures become an isError result carrying
// {"error": message} rather than a protocol error.
func (t *userTools) result(tool string, v interface{}, err error) (*mcp.CallToolResult, any, error) {
	if err != nil {
		msg := err.Error()
		if stdErr, ok := apperrors.AsStandard(err); ok {
			msg = stdErr.Message
		}
		t.logger.Error("tool execution failed", map[string]interface{}{"tool": tool, "error": err.Error()})
		raw, _ := json.Marshal(map[string]string{"error": msg})
		return &mcp.CallToolResult{
			IsError: true,
			Content: []mcp.Content{&mcp.TextContent{Text: string(raw)}},
		}, nil, nil
	}

	raw, err := json.Marshal(v)
	if err != nil {
		return nil, nil, err
	}
	return &mcp.CallToolResult{
		Content:           []mcp.Content{&mcp.TextContent{Text: string(raw)}},
		StructuredContent: v,
	}, nil, nil
}
