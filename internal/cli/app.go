package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"codeberg.org/snonux/cardforge/internal/config"
	"codeberg.org/snonux/cardforge/internal/logging"
	"codeberg.org/snonux/cardforge/internal/maintenance"
	"codeberg.org/snonux/cardforge/internal/pipeline"
	"codeberg.org/snonux/cardforge/internal/registry"
	"codeberg.org/snonux/cardforge/internal/translation"
	"codeberg.org/snonux/cardforge/internal/vocabulary"
)

// ErrRunFailed is returned when a stage of a run did not succeed
var ErrRunFailed = errors.New("run did not succeed")

// App connects the commands to the pipeline catalog, the configuration
// and the provider registry
type App struct {
	flags     *Flags
	catalog   func() (*pipeline.Catalog, error)
	factories *registry.Factories
	resolver  *config.Resolver
}

// NewApp creates the application with the bundled pipelines
func NewApp(flags *Flags) *App {
	return &App{
		flags: flags,
		catalog: func() (*pipeline.Catalog, error) {
			return DefaultCatalog(GetOpenAIKey())
		},
		resolver: config.NewResolver(),
	}
}

// DefaultCatalog holds the bundled pipelines. Without an API key the
// vocabulary pipeline cannot translate.
func DefaultCatalog(apiKey string) (*pipeline.Catalog, error) {
	var translator vocabulary.Translator
	if apiKey != "" {
		translator = translation.NewTranslator(apiKey)
	}

	vocab, err := vocabulary.NewPipeline(translator)
	if err != nil {
		return nil, err
	}
	maint, err := maintenance.NewPipeline()
	if err != nil {
		return nil, err
	}
	return pipeline.NewCatalog(vocab, maint)
}

func (a *App) projectRoot() (string, error) {
	root := viper.GetString("project_root")
	if root == "" {
		root = a.flags.ProjectRoot
	}
	return filepath.Abs(root)
}

// loadConfig resolves config/core.*, config/<env>.* and the --config files
func (a *App) loadConfig() (*config.Resolved, string, error) {
	root, err := a.projectRoot()
	if err != nil {
		return nil, "", err
	}
	env := viper.GetString("env")
	cfg, err := a.resolver.Load(config.DefaultSources(root, env, a.flags.ConfigFiles)...)
	if err != nil {
		return nil, "", err
	}
	return cfg, root, nil
}

func (a *App) logger(cfg *config.Resolved) (*zap.Logger, error) {
	level := viper.GetString("log_level")
	if level == "" {
		level = cfg.String("system.logLevel", "warn")
	}
	format := viper.GetString("log_format")
	if format == "" {
		format = cfg.String("system.logFormat", "console")
	}
	return logging.New(level, format, a.flags.Verbose)
}

func (a *App) buildRegistry(cfg *config.Resolved, root string, logger *zap.Logger) (*registry.Registry, error) {
	opts := []registry.Option{registry.WithLogger(logger), registry.WithBaseDir(root)}
	if a.factories != nil {
		opts = append(opts, registry.WithFactories(*a.factories))
	}
	return registry.Build(cfg, opts...)
}

func (a *App) pipeline(name string) (*pipeline.Pipeline, error) {
	catalog, err := a.catalog()
	if err != nil {
		return nil, err
	}
	p, ok := catalog.Get(name)
	if !ok {
		return nil, fmt.Errorf("unknown pipeline %q%s", name, registry.Suggest(name, catalog.Names()))
	}
	return p, nil
}

func (a *App) listCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the available pipelines",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog, err := a.catalog()
			if err != nil {
				return err
			}
			fmt.Println("Pipelines:")
			for _, name := range catalog.Names() {
				p, _ := catalog.Get(name)
				fmt.Printf("  %-12s %s\n", name, p.Description())
				var phases []string
				for _, phase := range p.Phases() {
					phases = append(phases, phase.Name)
				}
				if len(phases) > 0 {
					fmt.Printf("  %-12s phases: %s\n", "", strings.Join(phases, ", "))
				}
			}
			return nil
		},
	}
}

func (a *App) infoCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "info <pipeline> [stage]",
		Short: "Describe a pipeline or one of its stages",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.pipeline(args[0])
			if err != nil {
				return err
			}
			if len(args) == 2 {
				return printStage(p, args[1])
			}
			printPipeline(p)
			return nil
		},
	}
}

func printPipeline(p *pipeline.Pipeline) {
	fmt.Printf("Pipeline: %s\n", p.Name())
	fmt.Printf("%s\n\n", p.Description())

	fmt.Println("Stages:")
	for _, stage := range p.Stages() {
		line := fmt.Sprintf("  %-10s %s", stage.Name(), stage.Description())
		if deps := stage.Dependencies(); len(deps) > 0 {
			line += fmt.Sprintf(" (requires %s)", strings.Join(deps, ", "))
		}
		fmt.Println(line)
	}

	if phases := p.Phases(); len(phases) > 0 {
		fmt.Println("\nPhases:")
		for _, phase := range phases {
			fmt.Printf("  %-10s %s\n", phase.Name, strings.Join(phase.Stages, " -> "))
		}
	}
}

func printStage(p *pipeline.Pipeline, name string) error {
	stage, ok := p.Stage(name)
	if !ok {
		names := make([]string, 0, len(p.Stages()))
		for _, s := range p.Stages() {
			names = append(names, s.Name())
		}
		return fmt.Errorf("pipeline %s has no stage %q%s", p.Name(), name, registry.Suggest(name, names))
	}

	fmt.Printf("Stage: %s (pipeline %s)\n", stage.Name(), p.Name())
	fmt.Printf("Description: %s\n", stage.Description())
	if deps := stage.Dependencies(); len(deps) > 0 {
		fmt.Printf("Requires: %s\n", strings.Join(deps, ", "))
	}
	var in []string
	for _, phase := range p.Phases() {
		for _, s := range phase.Stages {
			if s == name {
				in = append(in, phase.Name)
				break
			}
		}
	}
	if len(in) > 0 {
		fmt.Printf("Phases: %s\n", strings.Join(in, ", "))
	}
	return nil
}

func (a *App) runCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <pipeline> [stage]",
		Short: "Run a stage or a phase of a pipeline",
		Long: `Run a single stage, or with --phase a named sequence of stages.
A phase stops at the first stage that does not fully succeed.

Stage arguments are passed with --arg key=value, for example
--arg words=words.txt --arg deck="My Deck".`,
		Args: cobra.RangeArgs(1, 2),
		RunE: a.run,
	}
	cmd.Flags().StringVarP(&a.flags.Phase, "phase", "p", "", "run the named phase instead of a single stage")
	cmd.Flags().BoolVarP(&a.flags.DryRun, "dry-run", "n", false, "show the stages that would run without running them")
	cmd.Flags().StringArrayVarP(&a.flags.Args, "arg", "a", nil, "stage argument key=value, may be repeated")
	return cmd
}

func (a *App) run(cmd *cobra.Command, args []string) error {
	p, err := a.pipeline(args[0])
	if err != nil {
		return err
	}

	target, phase := a.flags.Phase, true
	switch {
	case len(args) == 2 && target != "":
		return fmt.Errorf("give either a stage or --phase, not both")
	case len(args) == 2:
		target, phase = args[1], false
	case target == "":
		return fmt.Errorf("nothing to run: give a stage or --phase (see cardforge info %s)", p.Name())
	}
	if phase {
		if _, ok := p.Phase(target); !ok {
			return fmt.Errorf("pipeline %s: %w: %s", p.Name(), pipeline.ErrPhaseNotFound, target)
		}
	} else if _, ok := p.Stage(target); !ok {
		return fmt.Errorf("pipeline %s: %w: %s", p.Name(), pipeline.ErrStageNotFound, target)
	}

	stageArgs, err := ParseArgs(a.flags.Args)
	if err != nil {
		return err
	}

	if a.flags.DryRun {
		plan, err := p.Plan(target)
		if err != nil {
			return err
		}
		return plan.Write(os.Stdout)
	}

	cfg, root, err := a.loadConfig()
	if err != nil {
		return err
	}
	logger, err := a.logger(cfg)
	if err != nil {
		return err
	}
	defer logger.Sync()

	reg, err := a.buildRegistry(cfg, root, logger)
	if err != nil {
		return err
	}
	for _, issue := range reg.Issues() {
		fmt.Fprintf(os.Stderr, "Warning: skipped %s\n", issue)
	}

	ctx := pipeline.NewExecutionContext(p.Name(), root).WithContext(cmd.Context())
	ctx.Config = cfg.Section("pipelines." + p.Name())
	ctx.Args = stageArgs
	ctx.Providers = reg.ProvidersFor(p.Name())
	ctx.Logger = logger.With(zap.String("run", ctx.RunID))

	var (
		names   []string
		results []pipeline.Result
	)
	if phase {
		ph, _ := p.Phase(target)
		names = ph.Stages
		results, err = p.ExecutePhase(target, ctx)
	} else {
		var result pipeline.Result
		names = []string{target}
		result, err = p.ExecuteStage(target, ctx)
		results = append(results, result)
	}
	if err != nil {
		return err
	}

	failed := printResults(names, results)
	if failed || len(results) < len(names) {
		return fmt.Errorf("%w: %s %s (%d errors)", ErrRunFailed, p.Name(), target, len(ctx.Errors))
	}
	return nil
}

// printResults prints one line per executed stage and reports whether any
// did not succeed
func printResults(names []string, results []pipeline.Result) bool {
	failed := false
	for i, result := range results {
		mark := "✓"
		if !result.OK() {
			mark = "✗"
			failed = true
		}
		fmt.Printf("%s %-10s %-8s %s\n", mark, names[i], result.Status, result.Message)
		for _, e := range result.Errors {
			fmt.Printf("    - %s\n", e)
		}
	}
	for _, name := range names[len(results):] {
		fmt.Printf("- %-10s skipped\n", name)
	}
	return failed
}

func (a *App) configCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config [key]",
		Short: "Print the resolved configuration or one dotted key of it",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := a.loadConfig()
			if err != nil {
				return err
			}

			var value any = cfg.Map()
			if len(args) == 1 {
				v, ok := cfg.Lookup(args[0])
				if !ok {
					return fmt.Errorf("configuration key %q not set", args[0])
				}
				value = v
			}
			if !a.flags.ShowSecrets {
				value = maskSecrets(value)
			}

			switch value.(type) {
			case map[string]any, []any:
				out, err := yaml.Marshal(value)
				if err != nil {
					return err
				}
				fmt.Print(string(out))
			default:
				fmt.Println(value)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&a.flags.ShowSecrets, "show-secrets", false, "print API keys and tokens unmasked")
	return cmd
}

// maskSecrets replaces the values of keys that look like credentials
func maskSecrets(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			if s, ok := val.(string); ok && s != "" && isSecretKey(k) {
				out[k] = "********"
				continue
			}
			out[k] = maskSecrets(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = maskSecrets(val)
		}
		return out
	default:
		return v
	}
}

func isSecretKey(key string) bool {
	key = strings.ToLower(key)
	for _, marker := range []string{"key", "token", "secret", "password"} {
		if strings.Contains(key, marker) {
			return true
		}
	}
	return false
}

func (a *App) providersCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "providers <pipeline>",
		Short: "List the providers a pipeline sees",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.pipeline(args[0])
			if err != nil {
				return err
			}
			cfg, root, err := a.loadConfig()
			if err != nil {
				return err
			}
			logger, err := a.logger(cfg)
			if err != nil {
				return err
			}
			defer logger.Sync()

			reg, err := a.buildRegistry(cfg, root, logger)
			if err != nil {
				return err
			}
			printProviders(reg, p.Name())
			return nil
		},
	}
}

func printProviders(reg *registry.Registry, name string) {
	set := reg.ProvidersFor(name)
	visible := map[registry.Category][]string{
		registry.CategoryData:  keys(set.Data),
		registry.CategoryAudio: keys(set.Audio),
		registry.CategoryImage: keys(set.Image),
		registry.CategorySync:  keys(set.Sync),
	}

	fmt.Printf("Providers for pipeline %s:\n", name)
	for _, category := range registry.Categories {
		fmt.Printf("  %s:\n", category)
		if len(visible[category]) == 0 {
			fmt.Println("    (none)")
			continue
		}
		for _, n := range visible[category] {
			spec, _ := reg.Spec(category, n)
			line := fmt.Sprintf("    %-12s type=%s", n, spec.Implementation)
			if category == registry.CategoryData {
				ds, _ := reg.DataSpec(n)
				if ds.ReadOnly {
					line += " read-only"
				}
				if ds.Restricted() {
					line += " managed=" + strings.Join(ds.ManagedFiles, ",")
				}
			}
			fmt.Println(line)
		}
	}

	if issues := reg.Issues(); len(issues) > 0 {
		fmt.Println("  skipped:")
		for _, issue := range issues {
			fmt.Printf("    %s\n", issue)
		}
	}
}

func keys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
