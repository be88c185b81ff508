package cli

import (
	"context"
	"strings"

	"github.com/spf13/cobra"

	"hostpin/internal/app"
	"hostpin/internal/storage"
	"hostpin/internal/storage/models"
)

// ensureApp lazily initializes appInstance for shell completion.
// Cobra may invoke ValidArgsFunction without running PersistentPreRunE.
func ensureApp(cmd *cobra.Command) error {
	if appInstance != nil {
		return nil
	}
	var err error
	appInstance, err = app.New(appOptions(cmd))
	return err
}

// completeSettingKeys completes the key of "settings set"; the value is
// completed for probe_strategy only.
func completeSettingKeys(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	switch len(args) {
	case 0:
		return filterPrefix(storage.EditableKeys, toComplete), cobra.ShellCompDirectiveNoFileComp
	case 1:
		if args[0] == storage.KeyStrategy {
			return filterPrefix(storage.Strategies, toComplete), cobra.ShellCompDirectiveNoFileComp
		}
	}
	return nil, cobra.ShellCompDirectiveNoFileComp
}

// completeListKeys completes the list name, then the stored entries for
// "settings remove".
func completeListKeys(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) == 0 {
		return filterPrefix([]string{storage.KeyAddresses, storage.KeyDomains}, toComplete), cobra.ShellCompDirectiveNoFileComp
	}
	if cmd.Name() != "remove" {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	return completeStoredList(args[0])(cmd, args, toComplete)
}

// completeStoredList completes from the stored entries of a list setting.
func completeStoredList(key string) func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
	return func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		if err := ensureApp(cmd); err != nil {
			return nil, cobra.ShellCompDirectiveError
		}
		raw, err := appInstance.Storage.GetSetting(context.Background(), key)
		if err != nil {
			return nil, cobra.ShellCompDirectiveNoFileComp
		}
		return filterPrefix(models.ParseList(raw), toComplete), cobra.ShellCompDirectiveNoFileComp
	}
}

func filterPrefix(candidates []string, toComplete string) []string {
	var completions []string
	for _, c := range candidates {
		if strings.HasPrefix(strings.ToLower(c), strings.ToLower(toComplete)) {
			completions = append(completions, c)
		}
	}
	return completions
}
