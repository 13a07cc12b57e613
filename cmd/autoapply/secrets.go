package main

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Korbielowski/AutoApply/internal/config"
	"github.com/Korbielowski/AutoApply/internal/secrets"
)

func secretsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "secrets",
		Short: "Manage site and mailbox passwords in the system keychain",
	}

	var imap bool
	set := &cobra.Command{
		Use:   "set <site>",
		Short: "Store a password read from stdin",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			site, err := findSite(args[0])
			if err != nil {
				return err
			}
			line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			if err != nil && line == "" {
				return fmt.Errorf("read password: %w", err)
			}
			pw := strings.TrimRight(line, "\r\n")
			if pw == "" {
				return errors.New("empty password")
			}
			if imap {
				return secrets.SetMailPassword(site, pw)
			}
			return secrets.SetSitePassword(site, pw)
		},
	}
	set.Flags().BoolVar(&imap, "imap", false, "store the verification mailbox password instead")

	del := &cobra.Command{
		Use:   "delete <site>",
		Short: "Remove a stored site password",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			site, err := findSite(args[0])
			if err != nil {
				return err
			}
			return secrets.DeleteSitePassword(site)
		},
	}

	cmd.AddCommand(set, del)
	return cmd
}

// findSite looks name up in the user config without opening the store.
func findSite(name string) (config.Site, error) {
	cfgPath, err := config.EnsureUserConfig(dataDir, defaultCfgPath)
	if err != nil {
		return config.Site{}, err
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return config.Site{}, err
	}
	for _, s := range cfg.Sites {
		if strings.EqualFold(s.Name, name) {
			return s, nil
		}
	}
	return config.Site{}, fmt.Errorf("no configured site named %q", name)
}
