package config

import (
	"fmt"
	"math"
	"os"
	"os/user"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/mosaicnetworks/blocksim/src/common"
	"github.com/pkg/errors"
	"github.com/rifflock/lfshook"
	"github.com/sirupsen/logrus"
	prefixed "github.com/x-cray/logrus-prefixed-formatter"
)

// Broadcast strategies.
const (
	Flood    = "flood"
	PlumTree = "plumtree"
)

// Membership strategies.
const (
	Naive  = "naive"
	Brahms = "brahms"
	Dimple = "dimple"
)

// Ack modes. Auto enables acknowledgements when DIMPLE is the membership.
const (
	AcksAuto = "auto"
	AcksOn   = "on"
	AcksOff  = "off"
)

// Fork tie-break policies between equally long winning forks.
const (
	TieBreakEarliest = "earliest"
	TieBreakHash     = "hash"
)

// DefaultBadgerFile is the default name of the folder containing the report
// archive.
const DefaultBadgerFile = "badger_db"

// Default configuration values.
const (
	DefaultLogLevel = "info"
	DefaultNodes    = 100
	DefaultEndTime  = 300 * time.Second
	DefaultSeed     = 10

	DefaultBroadcast  = PlumTree
	DefaultMembership = Brahms
	DefaultAcks       = AcksAuto

	DefaultLookahead     = 100 * time.Millisecond
	DefaultMinDelay      = 10 * time.Microsecond
	DefaultDistance      = 100.0
	DefaultMaxRounds     = 0
	DefaultFanout        = 0
	DefaultRefreshPeriod = 30 * time.Second

	DefaultChurn          = false
	DefaultFailRate       = 0.0
	DefaultChurnStart     = 100 * time.Second
	DefaultChurnPeriod    = 0
	DefaultChurnMeanDelay = 20 * time.Second

	DefaultViewC              = 3
	DefaultAlpha              = 0.5
	DefaultBeta               = 0.5
	DefaultBrahmsPeriod       = 5 * time.Second
	DefaultBrahmsStablePeriod = 5 * time.Second
	DefaultBrahmsFastUntil    = 50 * time.Second
	DefaultBrahmsStopAt       = 200 * time.Second

	DefaultShuffleTime   = 25 * time.Second
	DefaultDimpleTimeout = 1 * time.Second
	DefaultSeeds         = 3

	DefaultAckFactor = 2.5
	DefaultLazyDelay = 1.0

	DefaultMinerFraction = 0.01
	DefaultMiningMean    = 30 * time.Second
	DefaultBlockTxLimit  = 100
	DefaultDifficulty    = 1
	DefaultMaxNonce      = 1 << 20
	DefaultTxMean        = 700 * time.Millisecond
	DefaultTxStart       = 50 * time.Second
	DefaultForkTieBreak  = TieBreakEarliest
	DefaultMaxOrphans    = 0
	DefaultMaxMempool    = 0

	DefaultStore = false
)

// Config contains all the configuration properties of a simulation run.
type Config struct {
	// DataDir is the top-level directory where the config file and the
	// optional report archive live.
	DataDir string `mapstructure:"datadir"`

	// LogLevel determines the chattiness of the log output.
	LogLevel string `mapstructure:"log"`

	// LogFile, when set, receives a copy of every log line.
	LogFile string `mapstructure:"log-file"`

	// Nodes is the size of the virtual network.
	Nodes int `mapstructure:"nodes"`

	// EndTime is the virtual time at which the simulation stops. Node reports
	// are emitted one second earlier.
	EndTime time.Duration `mapstructure:"end-time"`

	// Seed feeds the single random source of the run.
	Seed int64 `mapstructure:"seed"`

	// Broadcast selects the dissemination strategy: flood or plumtree.
	Broadcast string `mapstructure:"broadcast"`

	// Membership selects the peer-sampling strategy: naive, brahms or dimple.
	Membership string `mapstructure:"membership"`

	// Acks controls the PlumTree acknowledgement extension: auto, on or off.
	Acks string `mapstructure:"acks"`

	// Lookahead is the link delay of every protocol message.
	Lookahead time.Duration `mapstructure:"lookahead"`

	// MinDelay is the smallest delay the kernel accepts between two causally
	// dependent events.
	MinDelay time.Duration `mapstructure:"min-delay"`

	// Distance is the radius within which nodes are naive-membership
	// candidates.
	Distance float64 `mapstructure:"distance"`

	// MaxRounds caps flood relays. 0 means unlimited.
	MaxRounds int `mapstructure:"max-rounds"`

	// FanoutOverride replaces the derived naive fanout when > 0.
	FanoutOverride int `mapstructure:"fanout"`

	// RefreshPeriod is the naive membership refresh period.
	RefreshPeriod time.Duration `mapstructure:"refresh-period"`

	// Churn enables the churn manager.
	Churn bool `mapstructure:"churn"`

	// FailRate is the fraction of nodes churned out per cycle.
	FailRate float64 `mapstructure:"fail-rate"`

	// ChurnStart is the virtual time of the first churn cycle.
	ChurnStart time.Duration `mapstructure:"churn-start"`

	// ChurnPeriod repeats churn cycles when > 0.
	ChurnPeriod time.Duration `mapstructure:"churn-period"`

	// ChurnMeanDelay is the mean of the exponential delay between a node
	// being sampled and its departure.
	ChurnMeanDelay time.Duration `mapstructure:"churn-mean-delay"`

	// ViewC is Brahms' additive view-size constant: l = ceil(log10 n) + c.
	ViewC int `mapstructure:"view-c"`

	// Alpha is the share of the Brahms view rebuilt from pushes.
	Alpha float64 `mapstructure:"alpha"`

	// Beta is the share of the Brahms view rebuilt from pull replies.
	Beta float64 `mapstructure:"beta"`

	// BrahmsPeriod is the round period until BrahmsFastUntil.
	BrahmsPeriod time.Duration `mapstructure:"brahms-period"`

	// BrahmsStablePeriod is the round period after BrahmsFastUntil.
	BrahmsStablePeriod time.Duration `mapstructure:"brahms-stable-period"`

	// BrahmsFastUntil ends the fast sampling phase.
	BrahmsFastUntil time.Duration `mapstructure:"brahms-fast-until"`

	// BrahmsStopAt stops Brahms rounds altogether. 0 means never.
	BrahmsStopAt time.Duration `mapstructure:"brahms-stop-at"`

	// ShuffleTime is the DIMPLE shuffle period.
	ShuffleTime time.Duration `mapstructure:"shuffle-time"`

	// DimpleTimeout is how long a DIMPLE request waits for its response
	// before the target is declared failed.
	DimpleTimeout time.Duration `mapstructure:"dimple-timeout"`

	// Seeds is the number of DIMPLE seed nodes.
	Seeds int `mapstructure:"seeds"`

	// AckFactor multiplies the lookahead to obtain the ack deadline.
	AckFactor float64 `mapstructure:"ack-factor"`

	// LazyDelay multiplies the lookahead for IHAVE announcements.
	LazyDelay float64 `mapstructure:"lazy-delay"`

	// MinerFraction of the nodes become miners.
	MinerFraction float64 `mapstructure:"miner-fraction"`

	// MiningMean is the mean of the exponential proof-of-work latency.
	MiningMean time.Duration `mapstructure:"mining-mean"`

	// BlockTxLimit is both the block size and the mining trigger.
	BlockTxLimit int `mapstructure:"block-tx-limit"`

	// Difficulty is the number of leading '0' hex digits of a valid hash.
	Difficulty int `mapstructure:"difficulty"`

	// MaxNonce bounds the synchronous nonce search.
	MaxNonce int `mapstructure:"max-nonce"`

	// TxMean is the mean of the exponential delay between transactions.
	TxMean time.Duration `mapstructure:"tx-mean"`

	// TxStart is the virtual time of the first transaction.
	TxStart time.Duration `mapstructure:"tx-start"`

	// ForkTieBreak decides between equally long winning forks: earliest or
	// hash.
	ForkTieBreak string `mapstructure:"fork-tie-break"`

	// MaxOrphans bounds the orphan pool. 0 means unbounded.
	MaxOrphans int `mapstructure:"max-orphans"`

	// MaxMempool bounds the mempool. 0 means unbounded.
	MaxMempool int `mapstructure:"max-mempool"`

	// Store archives node reports and the summary in a badger database.
	Store bool `mapstructure:"store"`

	// DatabaseDir is the directory of the badger archive.
	DatabaseDir string `mapstructure:"db"`

	logger *logrus.Logger
}

// NewDefaultConfig returns a config object with default values.
func NewDefaultConfig() *Config {
	config := &Config{
		DataDir:            DefaultDataDir(),
		LogLevel:           DefaultLogLevel,
		Nodes:              DefaultNodes,
		EndTime:            DefaultEndTime,
		Seed:               DefaultSeed,
		Broadcast:          DefaultBroadcast,
		Membership:         DefaultMembership,
		Acks:               DefaultAcks,
		Lookahead:          DefaultLookahead,
		MinDelay:           DefaultMinDelay,
		Distance:           DefaultDistance,
		MaxRounds:          DefaultMaxRounds,
		FanoutOverride:     DefaultFanout,
		RefreshPeriod:      DefaultRefreshPeriod,
		Churn:              DefaultChurn,
		FailRate:           DefaultFailRate,
		ChurnStart:         DefaultChurnStart,
		ChurnPeriod:        DefaultChurnPeriod,
		ChurnMeanDelay:     DefaultChurnMeanDelay,
		ViewC:              DefaultViewC,
		Alpha:              DefaultAlpha,
		Beta:               DefaultBeta,
		BrahmsPeriod:       DefaultBrahmsPeriod,
		BrahmsStablePeriod: DefaultBrahmsStablePeriod,
		BrahmsFastUntil:    DefaultBrahmsFastUntil,
		BrahmsStopAt:       DefaultBrahmsStopAt,
		ShuffleTime:        DefaultShuffleTime,
		DimpleTimeout:      DefaultDimpleTimeout,
		Seeds:              DefaultSeeds,
		AckFactor:          DefaultAckFactor,
		LazyDelay:          DefaultLazyDelay,
		MinerFraction:      DefaultMinerFraction,
		MiningMean:         DefaultMiningMean,
		BlockTxLimit:       DefaultBlockTxLimit,
		Difficulty:         DefaultDifficulty,
		MaxNonce:           DefaultMaxNonce,
		TxMean:             DefaultTxMean,
		TxStart:            DefaultTxStart,
		ForkTieBreak:       DefaultForkTieBreak,
		MaxOrphans:         DefaultMaxOrphans,
		MaxMempool:         DefaultMaxMempool,
		Store:              DefaultStore,
		DatabaseDir:        DefaultDatabaseDir(),
	}

	return config
}

// NewTestConfig returns a config object with default values and a special
// logger for debugging tests.
func NewTestConfig(t testing.TB, level logrus.Level) *Config {
	config := NewDefaultConfig()
	config.logger = common.NewTestLogger(t, level)
	return config
}

// SetDataDir sets the top-level directory, and updates the database directory
// if it is currently set to the default value.
func (c *Config) SetDataDir(dataDir string) {
	c.DataDir = dataDir
	if c.DatabaseDir == DefaultDatabaseDir() {
		c.DatabaseDir = filepath.Join(dataDir, DefaultBadgerFile)
	}
}

// Validate checks the options that would otherwise produce a meaningless run.
func (c *Config) Validate() error {
	if c.Nodes < 2 {
		return errors.Errorf("nodes must be at least 2, got %d", c.Nodes)
	}
	if c.EndTime <= time.Second {
		return errors.Errorf("end-time must exceed 1s, got %v", c.EndTime)
	}
	switch c.Broadcast {
	case Flood, PlumTree:
	default:
		return errors.Errorf("unknown broadcast strategy %q", c.Broadcast)
	}
	switch c.Membership {
	case Naive, Brahms, Dimple:
	default:
		return errors.Errorf("unknown membership strategy %q", c.Membership)
	}
	switch c.Acks {
	case AcksAuto, AcksOn, AcksOff:
	default:
		return errors.Errorf("unknown acks mode %q", c.Acks)
	}
	switch c.ForkTieBreak {
	case TieBreakEarliest, TieBreakHash:
	default:
		return errors.Errorf("unknown fork tie-break %q", c.ForkTieBreak)
	}
	if c.FailRate < 0 || c.FailRate >= 1 {
		return errors.Errorf("fail-rate must be in [0, 1), got %v", c.FailRate)
	}
	if c.Alpha < 0 || c.Beta < 0 || c.Alpha+c.Beta > 1 {
		return errors.New("alpha and beta must be non-negative and sum to at most 1")
	}
	if c.Lookahead < c.MinDelay {
		return errors.Errorf("lookahead %v is below min-delay %v", c.Lookahead, c.MinDelay)
	}
	return nil
}

// AcksEnabled resolves the Acks mode.
func (c *Config) AcksEnabled() bool {
	switch c.Acks {
	case AcksOn:
		return true
	case AcksOff:
		return false
	default:
		return c.Membership == Dimple
	}
}

// Fanout is the naive membership neighbor count.
func (c *Config) Fanout() int {
	if c.FanoutOverride > 0 {
		return c.FanoutOverride
	}
	return int(math.Floor(c.log10n()+1)) * 6
}

// BrahmsViewSize is l1 = l2 = ceil(log10 n) + c.
func (c *Config) BrahmsViewSize() int {
	return int(math.Ceil(c.log10n())) + c.ViewC
}

// Gamma is the share of the Brahms view taken from the samplers.
func (c *Config) Gamma() float64 {
	g := 1 - c.Alpha - c.Beta
	if g < 1e-9 {
		return 0
	}
	return g
}

// ShuffleSize is the number of entries exchanged in a DIMPLE shuffle and the
// number of parallel reinforcement rounds.
func (c *Config) ShuffleSize() int {
	s := int(math.Floor(c.log10n()))
	if s < 1 {
		return 1
	}
	return s
}

// MaxActiveView is the active part of the DIMPLE view bound.
func (c *Config) MaxActiveView() int {
	return int(math.Ceil(c.log10n())) + 1
}

// MaxPassiveView is the passive part of the DIMPLE view bound.
func (c *Config) MaxPassiveView() int {
	return int(math.Ceil(c.log10n()+1)) * 6
}

// MaxPartialView bounds the DIMPLE partial view.
func (c *Config) MaxPartialView() int {
	return c.MaxActiveView() + c.MaxPassiveView()
}

// log10n is log10(Nodes), snapped to the nearest integer when within float
// error of it so that the derived sizes are exact for powers of ten.
func (c *Config) log10n() float64 {
	l := math.Log10(float64(c.Nodes))
	if r := math.Round(l); math.Abs(l-r) < 1e-9 {
		return r
	}
	return l
}

// MinerCount is ceil(MinerFraction * n).
func (c *Config) MinerCount() int {
	return int(math.Ceil(c.MinerFraction * float64(c.Nodes)))
}

// ReportTime is the virtual time at which nodes emit their reports.
func (c *Config) ReportTime() time.Duration {
	return c.EndTime - time.Second
}

// Name identifies a run in logs and in the report archive.
func (c *Config) Name() string {
	return fmt.Sprintf("%s+%s-%d-Seed%d-LOOKAHEAD%v-CHURN%t",
		c.Broadcast, c.Membership, c.Nodes, c.Seed, c.Lookahead.Seconds(), c.Churn)
}

// Logger returns a formatted logrus Entry, with prefix set to "blocksim".
func (c *Config) Logger() *logrus.Entry {
	if c.logger == nil {
		c.logger = logrus.New()
		c.logger.Level = LogLevel(c.LogLevel)
		c.logger.Formatter = new(prefixed.TextFormatter)
		if c.LogFile != "" {
			c.logger.AddHook(lfshook.NewHook(
				lfshook.PathMap{
					logrus.DebugLevel: c.LogFile,
					logrus.InfoLevel:  c.LogFile,
					logrus.WarnLevel:  c.LogFile,
					logrus.ErrorLevel: c.LogFile,
				},
				&logrus.TextFormatter{DisableColors: true},
			))
		}
	}
	return c.logger.WithField("prefix", "blocksim")
}

// DefaultDatabaseDir returns the default path for the badger database files.
func DefaultDatabaseDir() string {
	return filepath.Join(DefaultDataDir(), DefaultBadgerFile)
}

// DefaultDataDir return the default directory name for top-level blocksim
// config based on the underlying OS, attempting to respect conventions.
func DefaultDataDir() string {
	// Try to place the data folder in the user's home dir
	home := HomeDir()
	if home != "" {
		if runtime.GOOS == "darwin" {
			return filepath.Join(home, ".Blocksim")
		} else if runtime.GOOS == "windows" {
			return filepath.Join(home, "AppData", "Roaming", "Blocksim")
		} else {
			return filepath.Join(home, ".blocksim")
		}
	}
	// As we cannot guess a stable location, return empty and handle later
	return ""
}

// HomeDir returns the user's home directory.
func HomeDir() string {
	if home := os.Getenv("HOME"); home != "" {
		return home
	}
	if usr, err := user.Current(); err == nil {
		return usr.HomeDir
	}
	return ""
}

// LogLevel parses a string into a Logrus log level.
func LogLevel(l string) logrus.Level {
	switch l {
	case "debug":
		return logrus.DebugLevel
	case "info":
		return logrus.InfoLevel
	case "warn":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	case "fatal":
		return logrus.FatalLevel
	case "panic":
		return logrus.PanicLevel
	default:
		return logrus.DebugLevel
	}
}
