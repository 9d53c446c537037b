package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/josephgoksu/guidedmodules/models"
)

func isJSON() bool {
	return viper.GetBool("json")
}

func isVerbose() bool {
	return viper.GetBool("verbose")
}

func printJSON(cmd *cobra.Command, v any) error {
	output, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(output))
	return nil
}

// currentActor is the identity from --user/--org or the config file.
func currentActor() (models.Actor, error) {
	cfg := GetConfig()
	a := models.Actor{UserID: cfg.Actor.UserID, OrganizationID: cfg.Actor.OrganizationID}
	if err := models.ValidateStruct(a); err != nil {
		return models.Actor{}, fmt.Errorf("actor: %w", err)
	}
	return a, nil
}
