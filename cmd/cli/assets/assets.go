package assets

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/crucial707/alloc8/cmd/cli/client"
	"github.com/crucial707/alloc8/cmd/cli/output"
	"github.com/crucial707/alloc8/internal/lifecycle"
	"github.com/crucial707/alloc8/internal/models"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

// ==========================
// Init Assets
// ==========================
func InitAssets(rootCmd *cobra.Command) {
	assetsCmd := &cobra.Command{
		Use:   "assets",
		Short: "Manage assets and their lifecycle",
	}

	assetsCmd.AddCommand(
		listAssetsCmd(),
		showAssetCmd(),
		createAssetCmd(),
		assignAssetCmd(),
		simpleActionCmd("unassign", "Release an asset from its holder", "/unassign", "Asset %s unassigned."),
		simpleActionCmd("restore", "Restore a deactivated asset", "/restore", "Asset %s restored."),
		deactivateAssetCmd(),
		maintenanceCmd(),
		reportIssueCmd(),
		requestReturnCmd(),
		historyCmd(),
		timelineCmd(),
	)

	rootCmd.AddCommand(assetsCmd)
}

type assetPage struct {
	Items []models.Asset `json:"items"`
	Total int            `json:"total"`
}

// ==========================
// LIST
// ==========================
func listAssetsCmd() *cobra.Command {
	var (
		status, category, q string
		limit, offset       int
		mine, asJSON        bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List assets",
		RunE: func(cmd *cobra.Command, args []string) error {
			var items []models.Asset
			total := 0
			if mine {
				if err := client.Do(cmd.Context(), "GET", "/me/assets", nil, &items); err != nil {
					return err
				}
				total = len(items)
			} else {
				params := url.Values{}
				setIf(params, "status", status)
				setIf(params, "category", category)
				setIf(params, "q", q)
				params.Set("limit", strconv.Itoa(limit))
				params.Set("offset", strconv.Itoa(offset))

				var page assetPage
				if err := client.Do(cmd.Context(), "GET", "/assets?"+params.Encode(), nil, &page); err != nil {
					return err
				}
				items, total = page.Items, page.Total
			}

			if asJSON {
				return output.PrintJSON(items)
			}
			rows := make([][]interface{}, 0, len(items))
			for _, a := range items {
				rows = append(rows, []interface{}{a.ID, a.SerialNumber, a.Name, a.Category, a.Status, output.OrDash(a.AssignedTo), a.Cost.StringFixed(2)})
			}
			output.RenderTable([]string{"ID", "Serial", "Name", "Category", "Status", "Holder", "Cost"}, rows)
			fmt.Printf("%d of %d assets\n", len(items), total)
			return nil
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "filter by status")
	cmd.Flags().StringVar(&category, "category", "", "filter by category")
	cmd.Flags().StringVar(&q, "q", "", "search name or serial number")
	cmd.Flags().IntVar(&limit, "limit", 20, "page size")
	cmd.Flags().IntVar(&offset, "offset", 0, "page offset")
	cmd.Flags().BoolVar(&mine, "mine", false, "list only the assets assigned to you")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")
	return cmd
}

// ==========================
// SHOW
// ==========================
func showAssetCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show [id]",
		Short: "Show one asset with its maintenance records",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var a struct {
				models.Asset
				AllowedOperations []lifecycle.Op `json:"allowed_operations"`
			}
			if err := client.Do(cmd.Context(), "GET", "/assets/"+url.PathEscape(args[0]), nil, &a); err != nil {
				return err
			}
			if asJSON {
				return output.PrintJSON(a)
			}

			ops := make([]string, len(a.AllowedOperations))
			for i, op := range a.AllowedOperations {
				ops[i] = string(op)
			}
			output.RenderTable([]string{"Field", "Value"}, [][]interface{}{
				{"Serial", a.SerialNumber},
				{"Name", a.Name},
				{"Category", a.Category},
				{"Status", a.Status},
				{"Holder", output.OrDash(a.AssignedTo)},
				{"Cost", a.Cost.StringFixed(2)},
				{"Purchased", output.Date(a.PurchaseDate)},
				{"Warranty", output.Date(a.WarrantyExpiry)},
				{"Maintenance", fmt.Sprintf("%d (%s)", a.MaintenanceCount, a.TotalMaintenanceCost.StringFixed(2))},
				{"Allowed", strings.Join(ops, ", ")},
			})

			if len(a.Maintenance) > 0 {
				rows := make([][]interface{}, 0, len(a.Maintenance))
				for _, m := range a.Maintenance {
					rows = append(rows, []interface{}{m.ID, m.Reason, m.Vendor, m.Cost.StringFixed(2), output.Date(&m.StartDate), output.Date(m.EndDate)})
				}
				output.RenderTable([]string{"ID", "Reason", "Vendor", "Cost", "Start", "End"}, rows)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")
	return cmd
}

// ==========================
// CREATE
// ==========================
func createAssetCmd() *cobra.Command {
	var name, category, cost, purchased, warranty string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an available asset",
		RunE: func(cmd *cobra.Command, args []string) error {
			payload := map[string]any{
				"name":     name,
				"category": category,
			}
			if cost != "" {
				d, err := decimal.NewFromString(cost)
				if err != nil {
					return fmt.Errorf("invalid --cost: %w", err)
				}
				payload["cost"] = d
			}
			if purchased != "" {
				payload["purchase_date"] = purchased
			}
			if warranty != "" {
				payload["warranty_expiry"] = warranty
			}

			var a models.Asset
			if err := client.Do(cmd.Context(), "POST", "/assets", payload, &a); err != nil {
				return err
			}
			fmt.Printf("Created %s (id %d).\n", a.SerialNumber, a.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "asset name")
	cmd.Flags().StringVar(&category, "category", "", "registered category")
	cmd.Flags().StringVar(&cost, "cost", "", "purchase cost")
	cmd.Flags().StringVar(&purchased, "purchase-date", "", "purchase date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&warranty, "warranty-expiry", "", "warranty expiry (YYYY-MM-DD)")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("category")
	return cmd
}

// ==========================
// LIFECYCLE
// ==========================
func assignAssetCmd() *cobra.Command {
	var userID int64

	cmd := &cobra.Command{
		Use:   "assign [id]",
		Short: "Assign an available asset to a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var a models.Asset
			if err := client.Do(cmd.Context(), "POST", assetPath(args[0], "/assign"), map[string]int64{"user_id": userID}, &a); err != nil {
				return err
			}
			fmt.Printf("Asset %s assigned to user %d.\n", a.SerialNumber, userID)
			return nil
		},
	}
	cmd.Flags().Int64Var(&userID, "user", 0, "id of the user receiving the asset")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

// simpleActionCmd posts an empty body to /assets/{id}<suffix>.
func simpleActionCmd(use, short, suffix, done string) *cobra.Command {
	return &cobra.Command{
		Use:   use + " [id]",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := client.Do(cmd.Context(), "POST", assetPath(args[0], suffix), nil, nil); err != nil {
				return err
			}
			fmt.Printf(done+"\n", args[0])
			return nil
		},
	}
}

func deactivateAssetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "deactivate [id]",
		Short: "Retire an asset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := client.Do(cmd.Context(), "DELETE", assetPath(args[0], ""), nil, nil); err != nil {
				return err
			}
			fmt.Printf("Asset %s deactivated.\n", args[0])
			return nil
		},
	}
}

func maintenanceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "maintenance",
		Short: "Start or complete maintenance",
	}

	var reason, vendor, notes, cost string
	start := &cobra.Command{
		Use:   "start [id]",
		Short: "Send an asset to maintenance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload := map[string]any{"reason": reason, "vendor": vendor, "notes": notes}
			if err := addCost(payload, cost); err != nil {
				return err
			}
			var rec models.MaintenanceRecord
			if err := client.Do(cmd.Context(), "POST", assetPath(args[0], "/maintenance"), payload, &rec); err != nil {
				return err
			}
			fmt.Printf("Maintenance record %d opened for asset %s.\n", rec.ID, args[0])
			return nil
		},
	}
	start.Flags().StringVar(&reason, "reason", "", "why the asset goes to maintenance")
	start.Flags().StringVar(&vendor, "vendor", "", "repair vendor")
	start.Flags().StringVar(&notes, "notes", "", "free-form notes")
	start.Flags().StringVar(&cost, "cost", "", "estimated cost")
	_ = start.MarkFlagRequired("reason")

	var doneVendor, doneNotes, doneCost string
	complete := &cobra.Command{
		Use:   "complete [id]",
		Short: "Close the active maintenance record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload := map[string]any{"vendor": doneVendor, "notes": doneNotes}
			if err := addCost(payload, doneCost); err != nil {
				return err
			}
			var rec models.MaintenanceRecord
			if err := client.Do(cmd.Context(), "POST", assetPath(args[0], "/maintenance/complete"), payload, &rec); err != nil {
				return err
			}
			fmt.Printf("Maintenance record %d closed (cost %s).\n", rec.ID, rec.Cost.StringFixed(2))
			return nil
		},
	}
	complete.Flags().StringVar(&doneVendor, "vendor", "", "repair vendor")
	complete.Flags().StringVar(&doneNotes, "notes", "", "free-form notes")
	complete.Flags().StringVar(&doneCost, "cost", "", "final cost")

	cmd.AddCommand(start, complete)
	return cmd
}

func reportIssueCmd() *cobra.Command {
	var issueType, description string

	cmd := &cobra.Command{
		Use:   "report-issue [id]",
		Short: "Report a problem with an asset you hold",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var issue models.AssetIssue
			payload := map[string]string{"issue_type": issueType, "description": description}
			if err := client.Do(cmd.Context(), "POST", assetPath(args[0], "/issues"), payload, &issue); err != nil {
				return err
			}
			fmt.Printf("Issue %d reported.\n", issue.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&issueType, "type", "", "issue type (damage, malfunction, ...)")
	cmd.Flags().StringVar(&description, "description", "", "what is wrong")
	_ = cmd.MarkFlagRequired("type")
	_ = cmd.MarkFlagRequired("description")
	return cmd
}

func requestReturnCmd() *cobra.Command {
	var reason string

	cmd := &cobra.Command{
		Use:   "return [id]",
		Short: "Ask to hand back an asset you hold",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var ret models.AssetReturn
			if err := client.Do(cmd.Context(), "POST", assetPath(args[0], "/return"), map[string]string{"reason": reason}, &ret); err != nil {
				return err
			}
			fmt.Printf("Return request %d filed.\n", ret.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "why the asset is being returned")
	return cmd
}

// ==========================
// HISTORY / TIMELINE
// ==========================
func historyCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "history [id]",
		Short: "Show the lifecycle log of an asset, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var entries []models.HistoryEntry
			if err := client.Do(cmd.Context(), "GET", assetPath(args[0], "/history"), nil, &entries); err != nil {
				return err
			}
			if asJSON {
				return output.PrintJSON(entries)
			}
			rows := make([][]interface{}, 0, len(entries))
			for _, e := range entries {
				rows = append(rows, []interface{}{e.CreatedAt.Format(output.TimeLayout), e.Action, output.OrDash(e.PerformedBy), output.OrDash(e.AssignedTo), e.Notes})
			}
			output.RenderTable([]string{"When", "Action", "By", "Holder", "Notes"}, rows)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")
	return cmd
}

func timelineCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "timeline [id]",
		Short: "Show who held an asset and for how long",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var intervals []lifecycle.Interval
			if err := client.Do(cmd.Context(), "GET", assetPath(args[0], "/timeline"), nil, &intervals); err != nil {
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

func assetPath(id, suffix string) string {
	return "/assets/" + url.PathEscape(id) + suffix
}

func setIf(v url.Values, key, value string) {
	if value != "" {
		v.Set(key, value)
	}
}

func addCost(payload map[string]any, cost string) error {
	if cost == "" {
		return nil
	}
	d, err := decimal.NewFromString(cost)
	if err != nil {
		return fmt.Errorf("invalid --cost: %w", err)
	}
	payload["cost"] = d
	return nil
}
