package commands

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"sigs.k8s.io/yaml"

	"github.com/imageguard/imageguard/pkg/engine"
	"github.com/imageguard/imageguard/pkg/logging"
	"github.com/imageguard/imageguard/pkg/policy"
	"github.com/imageguard/imageguard/pkg/workload"
)

func ValidateCommand() *cobra.Command {
	var (
		policyFile string
		strictTags bool
	)
	cmd := &cobra.Command{
		Use:   "validate [manifest]...",
		Short: "Evaluate workload manifests against a settings file without a cluster",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := logging.Setup(logging.TextFormat); err != nil {
				return err
			}
			compiled, err := loadPolicy(policyFile, strictTags)
			if err != nil {
				return err
			}
			rejected := false
			for _, path := range args {
				data, err := os.ReadFile(path)
				if err != nil {
					return err
				}
				verdict, err := validateManifest(data, compiled)
				if err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
				if verdict.Allowed {
					fmt.Fprintf(cmd.OutOrStdout(), "%s: allowed\n", path)
				} else {
					rejected = true
					fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", path, verdict.Message())
				}
			}
			if rejected {
				return errors.New("one or more manifests were rejected")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&policyFile, "policy-file", "", "Path to the settings file (JSON or YAML).")
	cmd.Flags().BoolVar(&strictTags, "strict-tags", false, "Validate the syntax of rejected tags.")
	if err := cmd.MarkFlagRequired("policy-file"); err != nil {
		panic(err)
	}
	return cmd
}

// validateManifest mirrors the webhook's behavior: manifests the policy
// cannot interpret are allowed.
func validateManifest(data []byte, compiled *policy.Policy) (engine.Verdict, error) {
	raw, err := yaml.YAMLToJSON(data)
	if err != nil {
		return engine.Verdict{}, fmt.Errorf("not a valid manifest: %w", err)
	}
	var meta metav1.TypeMeta
	if err := yaml.Unmarshal(raw, &meta); err != nil {
		return engine.Verdict{}, fmt.Errorf("not a valid manifest: %w", err)
	}
	podSpec, err := workload.ExtractPodSpec(meta.Kind, raw)
	if err != nil || podSpec == nil {
		return engine.ValidatePodSpec(nil, compiled), nil
	}
	return engine.ValidatePodSpec(podSpec, compiled), nil
}
