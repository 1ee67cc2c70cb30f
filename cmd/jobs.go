package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/job-matcher/internal/jobs"
	"github.com/spigell/job-matcher/internal/logger"
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Manage the file-backed job catalog",
}

var jobsListCmd = &cobra.Command{
	Use:   "list",
	Short: "Print all postings of the catalog",
	Args:  cobra.NoArgs,
	Run: func(_ *cobra.Command, _ []string) {
		withCatalog(func(_ *zap.Logger, _ string, postings *jobs.Postings) error {
			return printJSON(postings.Items)
		})
	},
}

var jobsReportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print postings grouped by company",
	Args:  cobra.NoArgs,
	Run: func(_ *cobra.Command, _ []string) {
		withCatalog(func(_ *zap.Logger, _ string, postings *jobs.Postings) error {
			return printJSON(postings.ReportByCompany())
		})
	},
}

var jobsAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a posting to the catalog",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		flags := cmd.Flags()
		title, _ := flags.GetString("title")
		company, _ := flags.GetString("company")
		location, _ := flags.GetString("location")
		rawSkills, _ := flags.GetString("skills")
		jobType, _ := flags.GetString("type")
		id, _ := flags.GetString("id")

		withCatalog(func(logger *zap.Logger, path string, postings *jobs.Postings) error {
			posting, err := postings.Add(&jobs.JobPosting{
				ID:             strings.TrimSpace(id),
				Title:          title,
				Company:        company,
				Location:       location,
				SkillsRequired: jobs.ParseSkills(rawSkills),
				JobType:        jobs.JobType(jobType),
			})
			if err != nil {
				return err
			}

			if err := postings.ToFile(path); err != nil {
				return fmt.Errorf("writing catalog: %w", err)
			}

			logger.Info("posting added", zap.String("posting_id", posting.ID), zap.String("filename", path))
			return printJSON(posting)
		})
	},
}

var jobsDeleteCmd = &cobra.Command{
	Use:   "delete ID...",
	Short: "Delete postings from the catalog by ID",
	Args:  cobra.MinimumNArgs(1),
	Run: func(_ *cobra.Command, args []string) {
		withCatalog(func(logger *zap.Logger, path string, postings *jobs.Postings) error {
			var removed []string
			for _, id := range args {
				if postings.Delete(id) {
					removed = append(removed, id)
				}
			}
			if len(removed) == 0 {
				return fmt.Errorf("%w: no postings with ids %s", jobs.ErrInvalidInput, strings.Join(args, ", "))
			}

			if err := postings.ToFile(path); err != nil {
				return fmt.Errorf("writing catalog: %w", err)
			}

			logger.Info("postings deleted", zap.Strings("posting_ids", removed), zap.Int("postings_left", postings.Len()))
			return nil
		})
	},
}

var jobsPullCmd = &cobra.Command{
	Use:   "pull",
	Short: "Download the catalog from catalog.url into the catalog file",
	Args:  cobra.NoArgs,
	Run: func(_ *cobra.Command, _ []string) {
		logger, config := commandSetup()

		path := strings.TrimSpace(config.Catalog.File)
		if path == "" {
			logger.Fatal("catalog.file is required")
		}
		if strings.TrimSpace(config.Catalog.URL) == "" {
			logger.Fatal("catalog.url is required")
		}

		postings, err := loadCatalog(context.Background(), config.Catalog, logger)
		if err != nil {
			logger.Fatal("fetching the catalog", zap.Error(err))
		}

		if err := postings.ToFile(path); err != nil {
			logger.Fatal("writing catalog", zap.Error(err))
		}

		logger.Info("catalog saved", zap.String("filename", path), zap.Int("count", postings.Len()))
	},
}

func init() {
	rootCmd.AddCommand(jobsCmd)
	jobsCmd.AddCommand(jobsListCmd, jobsReportCmd, jobsAddCmd, jobsDeleteCmd, jobsPullCmd)

	jobsAddCmd.Flags().String("id", "", "posting id (generated when empty)")
	jobsAddCmd.Flags().String("title", "", "posting title")
	jobsAddCmd.Flags().String("company", "", "company name")
	jobsAddCmd.Flags().String("location", "", "job location")
	jobsAddCmd.Flags().String("skills", "", "comma separated required skills")
	jobsAddCmd.Flags().String("type", string(jobs.JobTypeAny), "job type: remote, onsite or any")
}

func commandSetup() (*zap.Logger, *Config) {
	logger, err := logger.New(logger.Options{
		JSON:   viper.GetBool("json"),
		Debug:  viper.GetBool("debug"),
		Output: viper.GetString("log-output"),
	})
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	return logger, config
}

// withCatalog loads the catalog file, runs fn and reports its error the way every
// jobs subcommand does.
func withCatalog(fn func(logger *zap.Logger, path string, postings *jobs.Postings) error) {
	logger, config := commandSetup()

	path := strings.TrimSpace(config.Catalog.File)
	if path == "" {
		logger.Fatal("catalog file is required", zap.String("hint", "pass --catalog or set catalog.file"))
	}

	postings, err := jobs.LoadFile(path)
	if err != nil {
		logger.Fatal("loading the catalog", zap.Error(err))
	}

	if err := fn(logger, path, postings); err != nil {
		logger.Fatal("jobs command failed", zap.String("class", string(jobs.Classify(err))), zap.Error(err))
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encoding output: %w", err)
	}
	return nil
}
