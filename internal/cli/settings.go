package cli

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"hostpin/internal/listsource"
	"hostpin/internal/storage"
	"hostpin/internal/storage/models"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Show and edit runtime settings",
	Long: `Show and edit the settings stored in the database.

Keys:
  addresses       candidate IP addresses
  domains         domains pinned in the hosts file
  interval        seconds between automatic runs (0 disables)
  probe_workers   concurrent probes
  probe_timeout   per-probe timeout in milliseconds
  probe_strategy  https or tls
  backup_keep     hosts backups to keep (0 keeps all)`,
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show all settings",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		all, err := appInstance.Storage.GetAllSettings(context.Background())
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "KEY\tVALUE")
		fmt.Fprintln(w, "---\t-----")
		for _, key := range storage.EditableKeys {
			value := all[key]
			if isListKey(key) {
				value = joinOrNone(models.ParseList(value))
			}
			fmt.Fprintf(w, "%s\t%s\n", key, value)
		}
		w.Flush()
		return nil
	},
}

var settingsSetCmd = &cobra.Command{
	Use:               "set <key> <value>",
	Short:             "Set a setting",
	Example:           "  hostpin settings set interval 600\n  hostpin settings set domains www.example.com,api.example.com",
	Args:              cobra.ExactArgs(2),
	ValidArgsFunction: completeSettingKeys,
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]
		if err := storage.ValidateSetting(key, value); err != nil {
			return err
		}
		if isListKey(key) {
			value = models.FormatList(models.ParseList(value))
		}
		if err := appInstance.Storage.SetSetting(context.Background(), key, value); err != nil {
			return err
		}
		fmt.Printf("Set %s\n", key)
		return nil
	},
}

var settingsAddCmd = &cobra.Command{
	Use:               "add <addresses|domains> <value>...",
	Short:             "Add entries to a list setting",
	Example:           "  hostpin settings add domains www.example.com",
	Args:              cobra.MinimumNArgs(2),
	ValidArgsFunction: completeListKeys,
	RunE: func(cmd *cobra.Command, args []string) error {
		return editList(args[0], func(items []string) ([]string, int) {
			return addItems(items, args[1:])
		}, "Added")
	},
}

var settingsRemoveCmd = &cobra.Command{
	Use:               "remove <addresses|domains> <value>...",
	Aliases:           []string{"rm"},
	Short:             "Remove entries from a list setting",
	Args:              cobra.MinimumNArgs(2),
	ValidArgsFunction: completeListKeys,
	RunE: func(cmd *cobra.Command, args []string) error {
		return editList(args[0], func(items []string) ([]string, int) {
			return removeItems(items, args[1:])
		}, "Removed")
	},
}

var settingsImportCmd = &cobra.Command{
	Use:   "import <addresses|domains> <url>",
	Short: "Add entries from a list published at a URL",
	Long: `Download a list and add its entries to a list setting.

The list may be plain text or base64, with entries separated by newlines,
spaces or commas. Hosts-file style lines contribute their address or their
names. Invalid entries are skipped.`,
	Example:           "  hostpin settings import addresses https://example.com/cdn-ips.txt",
	Args:              cobra.ExactArgs(2),
	ValidArgsFunction: completeListKeys,
	RunE: func(cmd *cobra.Command, args []string) error {
		key, url := args[0], args[1]
		if !isListKey(key) {
			return fmt.Errorf("%s is not a list setting (use addresses or domains)", key)
		}
		replace, _ := cmd.Flags().GetBool("replace")

		fetcher := listsource.NewFetcher(listsource.DefaultFetcherConfig())
		res, err := fetcher.Load(cmd.Context(), url, listsource.Kind(key))
		if err != nil {
			return err
		}
		if len(res.Skipped) > 0 {
			fmt.Printf("Skipped %d invalid entries: %s\n", len(res.Skipped), truncateName(joinOrNone(res.Skipped), 80))
		}

		return editList(key, func(items []string) ([]string, int) {
			if replace {
				return res.Entries, len(res.Entries)
			}
			return addItems(items, res.Entries)
		}, "Imported")
	},
}

// editList loads a list setting, applies edit and stores the result.
func editList(key string, edit func([]string) ([]string, int), verb string) error {
	if !isListKey(key) {
		return fmt.Errorf("%s is not a list setting (use addresses or domains)", key)
	}
	ctx := context.Background()

	raw, err := appInstance.Storage.GetSetting(ctx, key)
	if err != nil {
		raw = ""
	}
	items, changed := edit(models.ParseList(raw))
	if changed == 0 {
		fmt.Printf("%s unchanged\n", key)
		return nil
	}
	if err := appInstance.Storage.SetSetting(ctx, key, models.FormatList(items)); err != nil {
		return err
	}
	fmt.Printf("%s %d %s (%d total)\n", verb, changed, key, len(items))
	return nil
}

// addItems appends values not already present and reports how many were new.
func addItems(items, values []string) ([]string, int) {
	before := len(items)
	out := models.Dedup(append(append([]string(nil), items...), models.ParseList(joinArgs(values))...))
	return out, len(out) - before
}

// removeItems drops every occurrence of values and reports how many went.
func removeItems(items, values []string) ([]string, int) {
	drop := make(map[string]struct{})
	for _, v := range models.ParseList(joinArgs(values)) {
		drop[v] = struct{}{}
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if _, ok := drop[item]; !ok {
			out = append(out, item)
		}
	}
	return out, len(items) - len(out)
}

// joinArgs lets each argument carry a comma separated list itself.
func joinArgs(values []string) string {
	return models.FormatList(values)
}

func isListKey(key string) bool {
	return key == storage.KeyAddresses || key == storage.KeyDomains
}

func init() {
	settingsCmd.AddCommand(settingsShowCmd)
	settingsCmd.AddCommand(settingsSetCmd)
	settingsCmd.AddCommand(settingsAddCmd)
	settingsCmd.AddCommand(settingsRemoveCmd)

	settingsImportCmd.Flags().Bool("replace", false, "replace the list instead of adding to it")
	settingsCmd.AddCommand(settingsImportCmd)
	rootCmd.AddCommand(settingsCmd)
}
