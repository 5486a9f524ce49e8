package main

import (
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/spf13/cobra"

	"github.com/Koba-gh/bedrock-json-cdk/internal/trigger"
)

var lambdaCmd = &cobra.Command{
	Use:   "lambda",
	Short: "Run as the S3-triggered Lambda function",
	Long: `Run the Lambda runtime loop. Each S3 put notification is processed
record by record; the invocation fails if any record fails.

This is the default when AWS_LAMBDA_FUNCTION_NAME is set and no command
is given. Configuration comes from the environment:

  DYNAMODB_TABLE_NAME   table to write (required)
  BEDROCK_MODEL_ID      model or inference profile id`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		a, err := newApp(nil)
		if err != nil {
			return err
		}
		defer a.close()

		store, err := a.s3Store(ctx)
		if err != nil {
			return err
		}
		proc, err := a.processor(ctx, store)
		if err != nil {
			return err
		}

		handler := trigger.NewLambdaHandler(proc, a.logger)
		lambda.StartWithOptions(handler.Handle, lambda.WithContext(ctx))
		return nil
	},
}
