package main

import (
	"context"
	"time"

	"github.com/demesne/go-demesne-server/global"
	"github.com/demesne/go-demesne-server/queue"
	"github.com/demesne/go-demesne-server/services"
	"github.com/demesne/go-demesne-server/types"
	"github.com/go-resty/resty/v2"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(auditCmd)
}

func newClients() (*resty.Client, *services.PlcClient, *queue.RequestQueue) {
	rc := resty.New().SetTimeout(30 * time.Second)
	return rc, services.NewPlcClient(rc, global.Conf.Demesne.PlcDirectoryURL), queue.NewRequestQueue(global.Conf.Queue.Concurrency)
}

var resolveCmd = &cobra.Command{
	Use:   "resolve <handle|did>",
	Short: "Resolve an identity",
	Long:  "Resolve a handle or did:plc and print its PLC data and PDS",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		rc, plc, rq := newClients()
		resolver := services.NewIdentityResolverService(rc, plc, rq, types.NewEnvironment(nil))
		identity, err := resolver.Resolve(context.Background(), args[0])
		check(err)
		printJSON(identity)
	},
}

var auditCmd = &cobra.Command{
	Use:   "audit <handle|did>",
	Short: "Print the operation history of an identity",
	Long:  "Print the PLC audit log of an identity newest first, with the changes each operation made",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		rc, plc, rq := newClients()
		resolver := services.NewIdentityResolverService(rc, plc, rq, types.NewEnvironment(nil))
		did, err := resolver.ResolveDID(context.Background(), args[0])
		check(err)
		report, err := services.NewAuditService(plc, rq).AuditReport(context.Background(), did)
		check(err)
		printJSON(report)
	},
}
