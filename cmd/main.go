package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/demesne/go-demesne-server/global"
	"github.com/spf13/cobra"
)

func check(e error) {
	if e != nil {
		fmt.Printf("%v\n", e.Error())
		os.Exit(1)
	}
}

// printJSON writes v indented to stdout
func printJSON(v interface{}) {
	out, err := json.MarshalIndent(v, "", "  ")
	check(err)
	fmt.Printf("%s\n", string(out))
}

var (
	plcDirectoryURL string
	publicApiURL    string
)

var rootCmd = &cobra.Command{
	Use:     "demesne",
	Short:   "Demesne manages did:plc rotation keys",
	Long:    `Demesne lets an account holder add rotation keys they control to their AT Protocol did:plc identity and inspect the identity's operation history.`,
	Version: "0.1.0",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		global.Conf.Demesne.PlcDirectoryURL = plcDirectoryURL
		global.Conf.Demesne.PublicApiURL = publicApiURL
		global.Conf.ApplyDefaults()
	},
	Run: func(cmd *cobra.Command, args []string) {
		// empty
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&plcDirectoryURL, "plc", global.DefaultPlcDirectoryURL, "PLC directory url")
	rootCmd.PersistentFlags().StringVar(&publicApiURL, "api", global.DefaultPublicApiURL, "public AppView url used for handle resolution")
}

func main() {
	Execute()
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		panic(err)
	}
}
