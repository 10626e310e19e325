package main

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// credentialAlphabet mirrors original_source's RANDOM_TOKEN_ALPHABET: lower
// and upper case letters excluding i/o/I/O plus digits excluding 0/1, since
// those are easily confused when read aloud or transcribed by hand.
const credentialAlphabet = "abcdefghjklmnpqrstuvwxyz" + "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const (
	accessKeyLength = 16
	secretLength    = 32
)

func genCredsCmd() *cobra.Command {
	var entity string

	cmd := &cobra.Command{
		Use:   "gen-creds",
		Short: "Generate a new access key and secret for an entity",
		RunE: func(cmd *cobra.Command, args []string) error {
			if entity == "" {
				return fmt.Errorf("--entity is required")
			}
			key, err := randomCredentialString(accessKeyLength)
			if err != nil {
				return err
			}
			secret, err := randomCredentialString(secretLength)
			if err != nil {
				return err
			}
			doc := struct {
				Key    string `yaml:"key"`
				Secret string `yaml:"secret"`
				Entity string `yaml:"name"`
			}{Key: key, Secret: secret, Entity: entity}

			enc := yaml.NewEncoder(cmd.OutOrStdout())
			defer enc.Close()
			return enc.Encode(doc)
		},
	}
	cmd.Flags().StringVar(&entity, "entity", "", "name of the entity these credentials authenticate as")
	return cmd
}

// randomCredentialString draws n characters from credentialAlphabet using
// crypto/rand, an improvement over the original's math/random for
// credentials that gate production access.
func randomCredentialString(n int) (string, error) {
	alphabetSize := big.NewInt(int64(len(credentialAlphabet)))
	out := make([]byte, n)
	for i := range out {
		idx, err := rand.Int(rand.Reader, alphabetSize)
		if err != nil {
			return "", fmt.Errorf("generate random credential: %w", err)
		}
		out[i] = credentialAlphabet[idx.Int64()]
	}
	return string(out), nil
}
