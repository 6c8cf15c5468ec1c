package main

import (
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/spf13/cobra"

	"github.com/jacentio/cloudbridge/bridge"
	"github.com/jacentio/cloudbridge/dynamo"
	"github.com/jacentio/cloudbridge/stream"
)

func newCascadeCmd(opts *options) *cobra.Command {
	var (
		schemaPath string
		cfg        = dynamo.DefaultConfig()
	)

	cmd := &cobra.Command{
		Use:   "cascade",
		Short: "Run the DynamoDB stream handler for cascade deletes as a Lambda function",
		Long: `Starts an AWS Lambda handler for DynamoDB stream events of the entity tables.
When an item is soft deleted, its children are deleted according to the delete
rules in --schema. Without a schema every child is deleted.

AWS credentials and region are taken from the Lambda environment.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			level, err := parseLevel(opts.logLevel)
			if err != nil {
				return err
			}
			logger := newLogger(cmd.ErrOrStderr(), level)

			var registry *bridge.Registry
			if schemaPath != "" {
				if registry, err = loadSchema(schemaPath); err != nil {
					return err
				}
			}

			adapter, err := dynamo.NewFromEnv(cmd.Context(), registry, cfg)
			if err != nil {
				return err
			}

			handler := stream.NewHandler(adapter, registry, logger)
			logger.Info("starting cascade handler",
				"relationshipTable", cfg.RelationshipTable,
				"numShards", cfg.NumShards,
			)
			lambda.StartWithOptions(handler.HandleCascadeDelete, lambda.WithContext(cmd.Context()))
			return nil
		},
	}
	cmd.Flags().StringVar(&schemaPath, "schema", "", "YAML schema with entity relationships and delete rules")
	cmd.Flags().StringVar(&cfg.RelationshipTable, "relationship-table", cfg.RelationshipTable, "relationship table name")
	cmd.Flags().StringVar(&cfg.TablePrefix, "table-prefix", "", "prefix of every entity table")
	cmd.Flags().IntVar(&cfg.NumShards, "shards", cfg.NumShards, "relationship table shard count (1-256)")
	return cmd
}
