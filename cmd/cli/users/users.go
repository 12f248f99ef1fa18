package users

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/crucial707/alloc8/cmd/cli/client"
	"github.com/crucial707/alloc8/cmd/cli/output"
	"github.com/crucial707/alloc8/internal/lifecycle"
	"github.com/crucial707/alloc8/internal/models"
	"github.com/spf13/cobra"
)

// ==========================
// CLI Command Init
// ==========================
func InitUsers(rootCmd *cobra.Command) {
	usersCmd := &cobra.Command{
		Use:   "users",
		Short: "Manage users",
	}

	usersCmd.AddCommand(
		listUsersCmd(),
		createUserCmd(),
		setDeletedCmd("delete", "Soft-delete a user", "DELETE", "", "User %s deleted."),
		setDeletedCmd("restore", "Restore a deleted user", "POST", "/restore", "User %s restored."),
		timelineCmd(),
	)

	rootCmd.AddCommand(usersCmd)
}

type userPage struct {
	Items []models.User `json:"items"`
	Total int           `json:"total"`
}

// ==========================
// List Users
// ==========================
func listUsersCmd() *cobra.Command {
	var (
		includeDeleted, asJSON bool
		limit, offset          int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List users",
		RunE: func(cmd *cobra.Command, args []string) error {
			params := url.Values{}
			params.Set("limit", strconv.Itoa(limit))
			params.Set("offset", strconv.Itoa(offset))
			if includeDeleted {
				params.Set("include_deleted", "true")
			}

			var page userPage
			if err := client.Do(cmd.Context(), "GET", "/users?"+params.Encode(), nil, &page); err != nil {
				return err
			}
			if asJSON {
				return output.PrintJSON(page.Items)
			}

			rows := make([][]interface{}, 0, len(page.Items))
			for _, u := range page.Items {
				state := "active"
				if u.IsDeleted {
					state = "deleted"
				}
				rows = append(rows, []interface{}{u.ID, u.Username, u.Name, u.Role, u.Department, state})
			}
			output.RenderTable([]string{"ID", "Username", "Name", "Role", "Department", "State"}, rows)
			return nil
		},
	}

	cmd.Flags().BoolVar(&includeDeleted, "all", false, "include deleted users")
	cmd.Flags().IntVar(&limit, "limit", 50, "page size")
	cmd.Flags().IntVar(&offset, "offset", 0, "page offset")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")
	return cmd
}

// ==========================
// Create User
// ==========================
func createUserCmd() *cobra.Command {
	var username, name, email, password, role, department string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			payload := map[string]string{
				"username":   username,
				"name":       name,
				"email":      email,
				"password":   password,
				"role":       role,
				"department": department,
			}
			var u models.User
			if err := client.Do(cmd.Context(), "POST", "/users", payload, &u); err != nil {
				return err
			}
			fmt.Printf("Created user %s (id %d, %s).\n", u.Username, u.ID, u.Role)
			return nil
		},
	}

	cmd.Flags().StringVar(&username, "username", "", "login name")
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringVar(&email, "email", "", "email address")
	cmd.Flags().StringVar(&password, "password", "", "initial password (8-72 characters)")
	cmd.Flags().StringVar(&role, "role", models.RoleEmployee, "admin or employee")
	cmd.Flags().StringVar(&department, "department", "", "department")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func setDeletedCmd(use, short, method, suffix, done string) *cobra.Command {
	return &cobra.Command{
		Use:   use + " [id]",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := client.Do(cmd.Context(), method, "/users/"+url.PathEscape(args[0])+suffix, nil, nil); err != nil {
				return err
			}
			fmt.Printf(done+"\n", args[0])
			return nil
		},
	}
}

// ==========================
// Timeline
// ==========================

// timelineCmd shows a user's assignment history; without an id it shows the caller's.
func timelineCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "timeline [id]",
		Short: "Show which assets a user held and for how long",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "/me/timeline"
			if len(args) == 1 {
				path = "/users/" + url.PathEscape(args[0]) + "/timeline"
			}
			var intervals []lifecycle.Interval
			if err := client.Do(cmd.Context(), "GET", path, nil, &intervals); err != nil {
				return err
			}
			if asJSON {
				return output.PrintJSON(intervals)
			}
			output.RenderTimeline(intervals)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")
	return cmd
}
