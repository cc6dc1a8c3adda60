package main

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/jonathan/content-autopilot/internal/config"
	"github.com/jonathan/content-autopilot/internal/types"
)

// apiKeyPrefix marks keys issued by this tool so they are easy to spot in leaks.
const apiKeyPrefix = "cap_"

var (
	siteOrg    string
	siteDomain string
	keyName    string
)

var siteCmd = &cobra.Command{
	Use:   "site",
	Short: "Register sites",
}

var siteAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Register a site with default autopilot settings",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		orgID, err := uuid.Parse(siteOrg)
		if err != nil {
			return fmt.Errorf("invalid --org %q: %w", siteOrg, err)
		}

		ctx, cancel := signalContext()
		defer cancel()

		a, err := openApp(ctx, cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		site, err := a.db.CreateSite(ctx, orgID, siteDomain)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Site %s registered for %s\n", site.ID, site.Domain) //nolint:errcheck
		return nil
	},
}

var apiKeyCmd = &cobra.Command{
	Use:   "apikey",
	Short: "Manage organization API keys",
}

var apiKeyCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Issue an API key that can be exchanged for a bearer token",
	Long: `Issues a new organization API key. Only its bcrypt hash is stored,
so the key is printed once and cannot be recovered later.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		orgID, err := uuid.Parse(siteOrg)
		if err != nil {
			return fmt.Errorf("invalid --org %q: %w", siteOrg, err)
		}
		keyConfig, err := config.NewAPIKeyConfig()
		if err != nil {
			return err
		}

		key, err := generateAPIKey()
		if err != nil {
			return err
		}
		hash, err := keyConfig.HashKey(key)
		if err != nil {
			return err
		}

		ctx, cancel := signalContext()
		defer cancel()

		a, err := openApp(ctx, cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		stored, err := a.db.CreateAPIKey(ctx, orgID, keyName, hash)
		if err != nil {
			return err
		}

		resp := types.CreateAPIKeyResponse{
			ID:             stored.ID,
			OrganizationID: stored.OrganizationID,
			Name:           stored.Name,
			Key:            key,
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "API key %s (%s) created for organization %s\n", resp.ID, resp.Name, resp.OrganizationID) //nolint:errcheck
		fmt.Fprintf(out, "Key: %s\n", resp.Key)                                                                    //nolint:errcheck
		fmt.Fprintln(out, "Store it now; it will not be shown again.")                                             //nolint:errcheck
		return nil
	},
}

func init() {
	siteAddCmd.Flags().StringVar(&siteOrg, "org", "", "Owning organization ID")
	siteAddCmd.Flags().StringVar(&siteDomain, "domain", "", "Site domain, e.g. example.com")
	_ = siteAddCmd.MarkFlagRequired("org")
	_ = siteAddCmd.MarkFlagRequired("domain")
	siteCmd.AddCommand(siteAddCmd)

	apiKeyCreateCmd.Flags().StringVar(&siteOrg, "org", "", "Owning organization ID")
	apiKeyCreateCmd.Flags().StringVar(&keyName, "name", "default", "Label for the key")
	_ = apiKeyCreateCmd.MarkFlagRequired("org")
	apiKeyCmd.AddCommand(apiKeyCreateCmd)

	rootCmd.AddCommand(siteCmd, apiKeyCmd)
}

// generateAPIKey returns a random key with 256 bits of entropy.
func generateAPIKey() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate api key: %w", err)
	}
	return apiKeyPrefix + base64.RawURLEncoding.EncodeToString(buf), nil
}
