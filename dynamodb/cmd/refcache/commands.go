package main

import (
	"fmt"
	"strings"

	"github.com/acksell/refcache/dynamodb/cacheitem"
	"github.com/acksell/refcache/dynamodb/engine"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "refcache",
		Short:         "Reference cache client",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "config file (default: refcache.yaml in this or a parent directory)")
	root.PersistentFlags().BoolVar(&a.local, "local", false, "use a local BadgerDB store instead of remote functions")
	root.PersistentFlags().StringVar(&a.dbPath, "db", "", "local store directory, in-memory if empty (overrides dataDir)")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(
		newInsertCmd(a),
		newQueryCmd(a),
		newRemoveCmd(a),
		newWhoamiCmd(),
		newVersionCmd(),
	)
	return root
}

type recordFlags struct {
	client string
	source string
}

func (f *recordFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.client, "client", "", "customer the data belongs to")
	cmd.Flags().StringVar(&f.source, "source", "", "data source identifier")
}

func newInsertCmd(a *app) *cobra.Command {
	var (
		rf      recordFlags
		data    string
		payload string
		update  bool
	)
	cmd := &cobra.Command{
		Use:   "insert KEY [ID [COLUMNS...]]",
		Short: "Cache a record",
		Long: `Cache a record under KEY.

ID selects the sort key, "*" meaning KEY itself. COLUMNS pick the fields of
--data to cache, "*" or none meaning all of them.`,
		Args: cobra.MinimumNArgs(1),
	}
	rf.register(cmd)
	cmd.Flags().StringVar(&data, "data", "", "JSON object or comma separated column list")
	cmd.Flags().StringVar(&payload, "payload", "", "raw payload, stored in the payload column")
	cmd.Flags().BoolVar(&update, "update", false, "with --local, update the stored item instead of replacing it")
	cmd.MarkFlagsMutuallyExclusive("data", "payload")

	cmd.RunE = a.run("insert", func(cmd *cobra.Command, args []string) error {
		req := engine.Request{Key: args[0], Client: rf.client, Source: rf.source}
		switch {
		case payload != "":
			req.Data = engine.Payload(payload)
		case data != "":
			req.Data = cacheitem.ParseData(data)
		}
		tokens := args[1:]

		if !a.local {
			res, err := a.engine.Cache(cmd.Context(), req, tokens...)
			if err != nil {
				return err
			}
			return printResponse(cmd, res)
		}
		rec, err := engine.InsertRecord(req, tokens...)
		if err != nil {
			return err
		}
		rec, err = a.engine.WriteToDatastore(cmd.Context(), rec, engine.WriteOptions{ReturnValues: true, IsUpdate: update})
		if err != nil {
			return err
		}
		return printJSON(cmd, rec)
	})
	return cmd
}

func newQueryCmd(a *app) *cobra.Command {
	var (
		rf      recordFlags
		columns string
	)
	cmd := &cobra.Command{
		Use:   "query KEY [ID [COLUMNS...]]",
		Short: "Fetch cached records",
		Long: `Fetch the records cached under KEY.

Without ID the whole partition is returned. COLUMNS, or --columns, name the
fields to return.`,
		Args: cobra.MinimumNArgs(1),
	}
	rf.register(cmd)
	cmd.Flags().StringVar(&columns, "columns", "", "comma separated columns to return")

	cmd.RunE = a.run("query", func(cmd *cobra.Command, args []string) error {
		req := engine.Request{Key: args[0], Client: rf.client, Source: rf.source}
		if columns != "" {
			req.Data = cacheitem.DataColumns(strings.Split(columns, ",")...)
		}
		tokens := args[1:]

		var (
			recs []*cacheitem.Record
			err  error
		)
		if a.local {
			var ref *cacheitem.Record
			ref, err = engine.QueryReference(req, tokens...)
			if err != nil {
				return err
			}
			recs, err = a.engine.ReadFromDatastore(cmd.Context(), ref)
		} else {
			recs, err = a.engine.Get(cmd.Context(), req, tokens...)
		}
		if err != nil {
			return err
		}
		return printJSON(cmd, recs)
	})
	return cmd
}

func newRemoveCmd(a *app) *cobra.Command {
	var rf recordFlags
	cmd := &cobra.Command{
		Use:   "remove PRIMARY SORT",
		Short: "Remove a cached record",
		Long: `Remove the record addressed by PRIMARY and SORT.

With --local, --client and --source are required to rebuild the record
from its address.`,
		Args: cobra.ExactArgs(2),
	}
	rf.register(cmd)

	cmd.RunE = a.run("remove", func(cmd *cobra.Command, args []string) error {
		if !a.local {
			res, err := a.engine.Remove(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			return printResponse(cmd, res)
		}

		rec, err := cacheitem.NewObjectItem(cacheitem.Input{
			Key: cacheitem.KeyAddress(map[string]any{
				cacheitem.ObjectItem.PartitionName(): args[0],
				cacheitem.ObjectItem.SortName():      args[1],
			}),
			Client: rf.client,
			Source: rf.source,
		})
		if err != nil {
			return err
		}
		removed, err := a.engine.RemoveFromDatastore(cmd.Context(), rec)
		if err != nil {
			return err
		}
		if removed == nil {
			return fmt.Errorf("no record at %s/%s", args[0], args[1])
		}
		return printJSON(cmd, removed)
	})
	return cmd
}

func newWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the AWS identity used for remote calls",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			awsCfg, err := awsconfig.LoadDefaultConfig(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to load AWS config: %w", err)
			}
			out, err := sts.NewFromConfig(awsCfg).GetCallerIdentity(cmd.Context(), &sts.GetCallerIdentityInput{})
			if err != nil {
				return fmt.Errorf("failed to get caller identity: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "account: %s\narn:     %s\nuser:    %s\nregion:  %s\n",
				aws.ToString(out.Account), aws.ToString(out.Arn), aws.ToString(out.UserId), awsCfg.Region)
			return nil
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "refcache version %s\n", version)
		},
	}
}
