package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/job-matcher/internal/filtering"
	"github.com/spigell/job-matcher/internal/jobs"
	"github.com/spigell/job-matcher/internal/matcher"
	"github.com/spigell/job-matcher/internal/secrets"
	"github.com/spigell/job-matcher/internal/skills"
)

const (
	PromptExit                = "Exit"
	PromptReportByCompanies   = "Report matches by company"
	PromptMatchesToFile       = "Dump matches to file"
	PromptAppendToExcludeFile = "Append matches to exclude file"
)

var errExit = errors.New("exit requested")

var matchCmd = &cobra.Command{
	Use:   "match",
	Short: "Rank the catalog against a candidate profile and print the best matches",
	Run: func(cmd *cobra.Command, _ []string) {
		match(cmd)
	},
}

func init() {
	rootCmd.AddCommand(matchCmd)

	matchCmd.Flags().StringP("profile", "p", "", "candidate profile file (yaml or json)")
	matchCmd.Flags().String("name", "", "candidate name")
	matchCmd.Flags().String("skills", "", "comma separated candidate skills")
	matchCmd.Flags().Int("experience", 0, "years of experience")
	matchCmd.Flags().String("preference", "", "job type preference (remote, onsite, any) or free text")
	matchCmd.Flags().BoolP("interactive", "i", false, "ask for missing profile fields and offer actions on the result")
	matchCmd.Flags().IntP("top-k", "k", 0, "number of matches to return (default from matcher.top-k)")
	matchCmd.Flags().StringP("exclude-file", "e", "", "file with postings to exclude. Default is unset.")

	matchCmd.Flags().StringSlice("disable-filter", nil, "filter to skip (companies, exclude_file, job_type); repeatable")

	viper.BindPFlag("filters.exclude-file", matchCmd.Flags().Lookup("exclude-file"))
}

// filterChain returns the default filters with the named ones disabled.
func filterChain(disabled []string) ([]filtering.Filter, error) {
	steps := filtering.Defaults()
	for _, name := range disabled {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if !filtering.DisableByName(steps, name, "disabled by --disable-filter") {
			return nil, fmt.Errorf("unknown filter: %s", name)
		}
	}
	return steps, nil
}

func match(cmd *cobra.Command) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, config := commandSetup()

	logger.Info("starting the job-matcher", zap.String("version", version))

	// do not bother error since there is a valid parseable config
	pretty, _ := json.MarshalIndent(config, "", "  ")
	logger.Debug(fmt.Sprintf("starting with config: \n %s", pretty))

	interactive, _ := cmd.Flags().GetBool("interactive")

	profile, err := resolveProfile(cmd, config, interactive)
	if err != nil {
		logger.Fatal("resolving candidate profile", zap.Error(err))
	}

	if err := profile.Validate(); err != nil {
		logger.Fatal("invalid candidate profile", zap.String("class", string(jobs.Classify(err))), zap.Error(err))
	}

	postings, err := loadCatalog(ctx, config.Catalog, logger)
	if err != nil {
		logger.Fatal("loading the catalog", zap.Error(err))
	}

	logger.Info("catalog loaded", zap.Int("count", postings.Len()))

	disabled, _ := cmd.Flags().GetStringSlice("disable-filter")
	steps, err := filterChain(disabled)
	if err != nil {
		logger.Fatal("configuring filters", zap.Error(err))
	}

	postings, err = filtering.Run(ctx, config.Filters, filtering.Deps{Logger: logger, Profile: profile}, steps, postings)
	if err != nil {
		logger.Fatal("filtering failed", zap.Error(err))
	}

	logger.Debug("filters applied", zap.Any("filters", filtering.Describe(steps)))

	embedder, closer, err := newEmbedder(ctx, config.Embedding, logger)
	if err != nil {
		logger.Fatal("creating the embedder", zap.Error(err))
	}
	defer closer.Close()

	matcherCfg := config.Matcher
	if topK, _ := cmd.Flags().GetInt("top-k"); topK > 0 {
		matcherCfg.TopK = topK
	}

	m := matcher.New(embedder, skills.NewExpander(config.Skills.Synonyms), logger, matcherCfg)

	result, err := m.Match(ctx, *profile, postings.Snapshot())
	if err != nil {
		logger.Fatal("matching failed",
			zap.String("class", string(jobs.Classify(err))),
			zap.Bool("retryable", jobs.Retryable(err)),
			zap.Error(err),
		)
	}

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		logger.Fatal("encoding the result", zap.Error(err))
	}
	fmt.Println(string(out))

	if !interactive || len(result.Matches) == 0 {
		return
	}

	for {
		if err := handleAction(logger, config, result); err != nil {
			if errors.Is(err, errExit) {
				return
			}
			logger.Fatal("exiting", zap.Error(err))
		}
	}
}

func handleAction(logger *zap.Logger, config *Config, result *jobs.MatchResult) error {
	items := []string{PromptReportByCompanies, PromptMatchesToFile}
	excludeFile := strings.TrimSpace(config.Filters.ExcludeFile)
	if excludeFile != "" {
		items = append(items, PromptAppendToExcludeFile)
	}

	prompt := promptui.Select{
		Label: "What next?",
		Items: append(items, PromptExit),
	}

	_, action, err := prompt.Run()
	if err != nil {
		return err
	}

	matched := matchedPostings(result)

	switch action {
	case PromptExit:
		logger.Info("exiting", zap.String("reason", "got exit from prompt"))
		return errExit
	case PromptReportByCompanies:
		pretty, _ := json.MarshalIndent(matched.ReportByCompany(), "", "  ")
		logger.Info(string(pretty), zap.Int("matches count", matched.Len()))
		return nil
	case PromptMatchesToFile:
		filename, err := matched.DumpToTmpFile()
		if err != nil {
			return fmt.Errorf("dump matches to file: %w", err)
		}
		logger.Info("dumping matches to file", zap.String("filename", filename))
		return nil
	case PromptAppendToExcludeFile:
		excluded, err := jobs.GetExcludedPostingsFromFile(excludeFile)
		if errors.Is(err, os.ErrNotExist) {
			excluded, err = &jobs.ExcludedPostings{}, nil
		}
		if err != nil {
			return err
		}

		excluded.Append(matched.ToExcluded())

		if err := excluded.ToFile(excludeFile); err != nil {
			return err
		}

		logger.Info("appended to exclude file", zap.String("filename", excludeFile), zap.Int("count", matched.Len()))
		return errExit
	default:
		return fmt.Errorf("invalid action: %s", action)
	}
}

func matchedPostings(result *jobs.MatchResult) *jobs.Postings {
	postings := &jobs.Postings{Items: make([]*jobs.JobPosting, 0, len(result.Matches))}
	for idx := range result.Matches {
		postings.Items = append(postings.Items, &result.Matches[idx].JobPosting)
	}
	return postings
}

// resolveProfile layers the profile sources field by field: config file section, then
// --profile file, then flags, then interactive prompts for whatever is still missing.
// A later source overrides only the fields it sets.
func resolveProfile(cmd *cobra.Command, config *Config, interactive bool) (*jobs.CandidateProfile, error) {
	profile := &jobs.CandidateProfile{}
	if config.Profile != nil {
		mergeProfile(profile, config.Profile)
	}

	if path, _ := cmd.Flags().GetString("profile"); path != "" {
		loaded, err := loadProfileFile(path)
		if err != nil {
			return nil, err
		}
		mergeProfile(profile, loaded)
	}

	flags := cmd.Flags()
	if flags.Changed("name") {
		profile.Name, _ = flags.GetString("name")
	}
	if flags.Changed("skills") {
		raw, _ := flags.GetString("skills")
		profile.Skills = jobs.ParseSkills(raw)
	}
	if flags.Changed("experience") {
		profile.ExperienceYears, _ = flags.GetInt("experience")
	}
	if flags.Changed("preference") {
		profile.Preference, _ = flags.GetString("preference")
	}

	if interactive {
		if err := promptProfile(profile); err != nil {
			return nil, err
		}
	}

	return profile, nil
}

// mergeProfile copies the non-zero fields of src over dst.
func mergeProfile(dst, src *jobs.CandidateProfile) {
	if strings.TrimSpace(src.Name) != "" {
		dst.Name = src.Name
	}
	if len(src.Skills) > 0 {
		dst.Skills = append([]string(nil), src.Skills...)
	}
	if src.ExperienceYears != 0 {
		dst.ExperienceYears = src.ExperienceYears
	}
	if strings.TrimSpace(src.Preference) != "" {
		dst.Preference = src.Preference
	}
}

func loadProfileFile(path string) (*jobs.CandidateProfile, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading profile %q: %w", path, err)
	}

	profile := &jobs.CandidateProfile{}
	if err := v.Unmarshal(profile); err != nil {
		return nil, fmt.Errorf("parsing profile %q: %w", path, err)
	}
	return profile, nil
}

func promptProfile(profile *jobs.CandidateProfile) error {
	notEmpty := func(input string) error {
		if strings.TrimSpace(input) == "" {
			return errors.New("value is required")
		}
		return nil
	}

	if strings.TrimSpace(profile.Name) == "" {
		name, err := (&promptui.Prompt{Label: "Name", Validate: notEmpty}).Run()
		if err != nil {
			return err
		}
		profile.Name = strings.TrimSpace(name)
	}

	if len(profile.Skills) == 0 {
		raw, err := (&promptui.Prompt{Label: "Skills (comma separated)", Validate: notEmpty}).Run()
		if err != nil {
			return err
		}
		profile.Skills = jobs.ParseSkills(raw)
	}

	if profile.ExperienceYears == 0 {
		raw, err := (&promptui.Prompt{
			Label:   "Experience (years)",
			Default: "0",
			Validate: func(input string) error {
				years, err := strconv.Atoi(strings.TrimSpace(input))
				if err != nil || years < 0 {
					return errors.New("enter a non-negative number")
				}
				return nil
			},
		}).Run()
		if err != nil {
			return err
		}
		profile.ExperienceYears, _ = strconv.Atoi(strings.TrimSpace(raw))
	}

	if profile.Preference == "" {
		_, preference, err := (&promptui.Select{
			Label: "Preferred job type",
			Items: []string{string(jobs.JobTypeAny), string(jobs.JobTypeRemote), string(jobs.JobTypeOnsite)},
		}).Run()
		if err != nil {
			return err
		}
		profile.Preference = preference
	}

	return nil
}

// loadCatalog reads the catalog from the HTTP endpoint when configured, otherwise from
// the catalog file.
func loadCatalog(ctx context.Context, cfg *CatalogConfig, logger *zap.Logger) (*jobs.Postings, error) {
	if url := strings.TrimSpace(cfg.URL); url != "" {
		token := ""
		if strings.TrimSpace(cfg.TokenFile) != "" {
			loaded, err := secrets.Load(secrets.Source{Name: "catalog token", File: cfg.TokenFile})
			if err != nil {
				return nil, err
			}
			token = loaded
		}

		client := jobs.NewClient(logger, url, token)
		if cfg.UserAgent != "" {
			client.UserAgent = cfg.UserAgent
		}
		return client.Fetch(ctx)
	}

	path := strings.TrimSpace(cfg.File)
	if path == "" {
		return nil, errors.New("catalog.file or catalog.url is required")
	}

	// jobs.LoadFile treats a missing file as an empty catalog, which only suits jobs add.
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("catalog file: %w", err)
	}

	return jobs.LoadFile(path)
}
