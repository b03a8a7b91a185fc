package main

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/demesne/go-demesne-server/services"
	"github.com/demesne/go-demesne-server/types"
	"github.com/demesne/go-demesne-server/util"
	"github.com/spf13/cobra"
)

var (
	outputFile string
	passcode   string
)

func init() {
	keysCmd.Flags().StringVarP(&outputFile, "output", "o", "", "output file (default is stdout)")
	keystoreCmd.Flags().StringVarP(&passcode, "passcode", "p", "", "passcode required to release private keys (optional)")
	serverKeysCmd.Flags().StringVarP(&outputFile, "output", "o", "", "output file (default is stdout)")
	rootCmd.AddCommand(keysCmd)
	rootCmd.AddCommand(keystoreCmd)
	rootCmd.AddCommand(serverKeysCmd)
}

func writeOutput(fileBytes []byte) {
	if outputFile == "" {
		fmt.Printf("\n%s\n", string(fileBytes))
		return
	}
	// fail if file already exists
	if _, sErr := os.Stat(outputFile); !errors.Is(sErr, os.ErrNotExist) {
		fmt.Printf("File already exists: %s\n", outputFile)
		os.Exit(1)
	}
	check(os.WriteFile(outputFile, fileBytes, 0600))
	fmt.Printf("Output file: %s\n", outputFile)
}

// keysCmd generates an offline secp256k1 rotation key, e.g. for a cold backup key
var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Generate a secp256k1 rotation key",
	Long:  "Generate a secp256k1 rotation key and print its did:key and hex private key",
	Run: func(cmd *cobra.Command, args []string) {
		key, err := services.NewKeyMaterialService(nil, nil, false).GenerateKey()
		check(err)
		keysJson := map[string]interface{}{
			"type":       "demesne_rotation_key_secp256k1",
			"publicKey":  key.PublicIdentifier,
			"privateKey": hex.EncodeToString(key.PrivateKeyBytes),
			"created":    time.Now().UnixMilli(),
		}
		fileBytes, err := json.MarshalIndent(keysJson, "", "  ")
		check(err)
		writeOutput(fileBytes)
	},
}

// serverKeysCmd generates the ed25519 keys referenced by demesne.serverKeysPath
var serverKeysCmd = &cobra.Command{
	Use:   "serverkeys",
	Short: "Generate the server signing keys",
	Long:  "Generate the ed25519 keypair signing account route tokens (demesne.serverKeysPath)",
	Run: func(cmd *cobra.Command, args []string) {
		pub, priv, err := ed25519.GenerateKey(rand.Reader)
		check(err)
		fileBytes, err := json.MarshalIndent(&types.ServerKeys{
			Type:       "demesne_server_keys_ed25519",
			PublicKey:  base64.StdEncoding.EncodeToString(pub),
			PrivateKey: base64.StdEncoding.EncodeToString(priv),
			Created:    time.Now().UnixMilli(),
		}, "", "  ")
		check(err)
		writeOutput(fileBytes)
	},
}

// keystoreCmd prints the keystore section of conf.yaml
var keystoreCmd = &cobra.Command{
	Use:   "keystore",
	Short: "Generate keystore configuration",
	Long:  "Generate the encryption key and (optionally) the passcode hash for the keystore section of conf.yaml",
	Run: func(cmd *cobra.Command, args []string) {
		encryptionKey, err := util.RandomBytes(32)
		check(err)
		fmt.Printf("keystore:\n  type: redis\n  encryptionKeyHex: %s\n", hex.EncodeToString(encryptionKey))
		if passcode == "" {
			fmt.Printf("  requireAuthentication: false # private key retrieval disabled\n")
			return
		}
		salt, err := util.RandomBytes(16)
		check(err)
		hash, err := util.ScryptPasscode(passcode, salt)
		check(err)
		fmt.Printf("  requireAuthentication: true\n  passcodeHashHex: %s\n  passcodeSaltHex: %s\n", hex.EncodeToString(hash), hex.EncodeToString(salt))
	},
}
