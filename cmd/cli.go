package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"moodscope/internal/config"
	"moodscope/pkg/build"
)

// Commands reported in Config.Command.
const (
	CommandRun  = "run"
	CommandList = "list"
)

// flagValues holds raw flag input; only flags the user changed are applied
// over the loaded configuration.
type flagValues struct {
	configPath      string
	deviceID        int
	channels        int
	sampleRate      float64
	framesPerBuffer int
	lowLatency      bool
	fftSize         int
	wavPath         string
	wavLoop         bool
	sensitivity     float64
	frameRate       float64
	tui             bool
	verbose         bool
}

// ParseArgs parses the process arguments into a configuration.
func ParseArgs() (*config.Config, error) {
	return parse(os.Args[1:])
}

// parse builds the command tree and executes it over args. The returned
// config is nil when cobra handled the invocation itself (--help, --version).
func parse(args []string) (*config.Config, error) {
	buildInfo := build.GetBuildInfo()
	var (
		flags   flagValues
		options *config.Config
	)

	load := func(cmd *cobra.Command, command string) error {
		cfg, err := config.LoadConfig(flags.configPath)
		if err != nil {
			return err
		}
		applyFlags(cmd, &flags, cfg)
		if err := cfg.Validate(); err != nil {
			return err
		}
		cfg.Command = command
		options = cfg
		return nil
	}

	rootCmd := &cobra.Command{
		Use:           buildInfo.Name,
		Short:         buildInfo.Description,
		Version:       buildInfo.Version,
		SilenceErrors: true,
		SilenceUsage:  true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd:   true,
			DisableDescriptions: true,
			DisableNoDescFlag:   true,
			HiddenDefaultCmd:    true,
		},
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return load(cmd, CommandRun)
		},
	}

	// Display help message
	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})

	// List command
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List available audio devices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return load(cmd, CommandList)
		},
	}
	rootCmd.AddCommand(listCmd)

	pf := rootCmd.PersistentFlags()

	pf.StringVar(&flags.configPath, "config", "",
		"Path to a YAML configuration file (default: ./moodscope.yaml or ./config.yaml)")

	// Audio Device Configuration
	pf.IntVarP(&flags.deviceID, "device", "d", config.DefaultDeviceID,
		"Specify input device ID. Use 'list' command to see available devices.")
	pf.IntVarP(&flags.channels, "channels", "c", config.DefaultChannels,
		"Number of input channels, downmixed to mono")
	pf.Float64VarP(&flags.sampleRate, "sample-rate", "s", config.DefaultSampleRate,
		"Sample rate, measured in Hertz (Hz)")
	pf.IntVarP(&flags.framesPerBuffer, "frames-per-buffer", "b", config.DefaultFramesPerBuffer,
		"The number of frames per buffer (affects latency)")
	pf.BoolVarP(&flags.lowLatency, "low-latency", "l", false,
		"Use low latency mode for real-time processing")
	pf.IntVar(&flags.fftSize, "fft-size", config.DefaultFFTSize,
		"Samples per transform, a power of two; half as many bins are analysed")

	// File Source Configuration
	pf.StringVar(&flags.wavPath, "wav", "",
		"Replay a WAV file in real time instead of capturing from a device")
	pf.BoolVar(&flags.wavLoop, "loop", false,
		"Loop the WAV file instead of stopping at its end")

	// Analysis Configuration
	pf.Float64Var(&flags.sensitivity, "sensitivity", config.DefaultSensitivity,
		"Initial energy sensitivity in [0, 1]")
	pf.Float64Var(&flags.frameRate, "frame-rate", config.DefaultFrameRate,
		"Frames analysed per second")

	// Display and Debug Configuration
	pf.BoolVar(&flags.tui, "tui", false,
		"Show the live terminal monitor")
	pf.BoolVarP(&flags.verbose, "verbose", "v", false,
		"Show verbose output")

	// Execute the CLI
	rootCmd.SetArgs(args)
	if err := rootCmd.Execute(); err != nil {
		return nil, err
	}
	return options, nil
}

// applyFlags copies every flag the user set over cfg.
func applyFlags(cmd *cobra.Command, f *flagValues, cfg *config.Config) {
	changed := cmd.Flags().Changed

	if changed("device") {
		cfg.Audio.InputDevice = f.deviceID
	}
	if changed("channels") {
		cfg.Audio.InputChannels = f.channels
	}
	if changed("sample-rate") {
		cfg.Audio.SampleRate = f.sampleRate
	}
	if changed("frames-per-buffer") {
		cfg.Audio.FramesPerBuffer = f.framesPerBuffer
	}
	if changed("low-latency") {
		cfg.Audio.LowLatency = f.lowLatency
	}
	if changed("fft-size") {
		cfg.Audio.FFTSize = f.fftSize
	}
	if changed("wav") {
		cfg.Audio.WAVPath = f.wavPath
		cfg.Audio.Source = config.SourceWAV
	}
	if changed("loop") {
		cfg.Audio.WAVLoop = f.wavLoop
	}
	if changed("sensitivity") {
		cfg.Analysis.Sensitivity = f.sensitivity
	}
	if changed("frame-rate") {
		cfg.Analysis.FrameRate = f.frameRate
	}
	if changed("tui") {
		cfg.TUIMode = f.tui
	}
	if changed("verbose") && f.verbose {
		cfg.Debug = true
		cfg.LogLevel = "debug"
	}
}
