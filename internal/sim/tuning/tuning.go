package tuning

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

type Tuning struct {
	TickRateHz int `yaml:"tick_rate_hz" env:"TICK_RATE_HZ"`

	CooldownSeconds          int `yaml:"cooldown_seconds" env:"COOLDOWN_SECONDS"`
	TeleportCountdown        int `yaml:"teleport_countdown" env:"TELEPORT_COUNTDOWN"`
	XPCost                   int `yaml:"xp_cost" env:"XP_COST"`
	MaxTotemsPerPlayer       int `yaml:"max_totems_per_player" env:"MAX_TOTEMS_PER_PLAYER"`
	BreakConfirmationSeconds int `yaml:"break_confirmation_seconds" env:"BREAK_CONFIRMATION_SECONDS"`

	TotemBlock TotemBlock `yaml:"totem_block" envPrefix:"TOTEM_BLOCK_"`
	Effects    Effects    `yaml:"effects" envPrefix:"EFFECTS_"`

	SnapshotEverySeconds int `yaml:"snapshot_every_seconds" env:"SNAPSHOT_EVERY_SECONDS"`
	CleanupEverySeconds  int `yaml:"cleanup_every_seconds" env:"CLEANUP_EVERY_SECONDS"`
	ArchiveKeep          int `yaml:"archive_keep" env:"ARCHIVE_KEEP"`

	// Admins are player names allowed to manage any totem.
	Admins []string `yaml:"admins" env:"ADMINS" envSeparator:","`
}

type TotemBlock struct {
	Material       string `yaml:"material" env:"MATERIAL"`
	Indestructible bool   `yaml:"indestructible" env:"INDESTRUCTIBLE"`
}

type Effects struct {
	Particles      bool   `yaml:"particles" env:"PARTICLES"`
	ParticleType   string `yaml:"particle_type" env:"PARTICLE_TYPE"`
	Sounds         bool   `yaml:"sounds" env:"SOUNDS"`
	SoundType      string `yaml:"sound_type" env:"SOUND_TYPE"`
	CountdownSound string `yaml:"countdown_sound" env:"COUNTDOWN_SOUND"`
}

const (
	DefaultMaterial       = "BEDROCK"
	DefaultParticleType   = "ENCHANT"
	DefaultSoundType      = "ENTITY_ENDERMAN_TELEPORT"
	DefaultCountdownSound = "BLOCK_NOTE_BLOCK_PLING"

	EnvPrefix = "TOTEM_"
)

func Defaults() Tuning {
	return Tuning{
		TickRateHz:               20,
		CooldownSeconds:          300,
		TeleportCountdown:        3,
		XPCost:                   1,
		MaxTotemsPerPlayer:       20,
		BreakConfirmationSeconds: 5,
		TotemBlock: TotemBlock{
			Material:       DefaultMaterial,
			Indestructible: true,
		},
		Effects: Effects{
			Particles:      true,
			ParticleType:   DefaultParticleType,
			Sounds:         true,
			SoundType:      DefaultSoundType,
			CountdownSound: DefaultCountdownSound,
		},
		SnapshotEverySeconds: 300,
		CleanupEverySeconds:  600,
		ArchiveKeep:          10,
	}
}

// Load reads path over Defaults. Keys missing from the file keep their
// default value.
func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	t.Validate()
	return t, nil
}

// ApplyEnv overlays TOTEM_* environment variables (TOTEM_COOLDOWN_SECONDS,
// TOTEM_EFFECTS_SOUNDS, ...). Unset variables leave t unchanged.
func ApplyEnv(t *Tuning) error {
	if err := env.ParseWithOptions(t, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	t.Validate()
	return nil
}

// Validate clamps values the core cannot run with.
func (t *Tuning) Validate() {
	d := Defaults()
	if t.TickRateHz <= 0 {
		t.TickRateHz = d.TickRateHz
	}
	if t.CooldownSeconds < 0 {
		t.CooldownSeconds = 0
	}
	if t.TeleportCountdown < 0 {
		t.TeleportCountdown = 0
	}
	if t.XPCost < 0 {
		t.XPCost = 0
	}
	if t.MaxTotemsPerPlayer < 0 {
		t.MaxTotemsPerPlayer = 0
	}
	if t.BreakConfirmationSeconds < 0 {
		t.BreakConfirmationSeconds = 0
	}
	t.TotemBlock.Material = strings.ToUpper(strings.TrimSpace(t.TotemBlock.Material))
	if t.TotemBlock.Material == "" {
		t.TotemBlock.Material = DefaultMaterial
	}
	if strings.TrimSpace(t.Effects.ParticleType) == "" {
		t.Effects.ParticleType = DefaultParticleType
	}
	if strings.TrimSpace(t.Effects.SoundType) == "" {
		t.Effects.SoundType = DefaultSoundType
	}
	if strings.TrimSpace(t.Effects.CountdownSound) == "" {
		t.Effects.CountdownSound = DefaultCountdownSound
	}
	if t.SnapshotEverySeconds < 0 {
		t.SnapshotEverySeconds = 0
	}
	if t.CleanupEverySeconds < 0 {
		t.CleanupEverySeconds = 0
	}
	if t.ArchiveKeep < 0 {
		t.ArchiveKeep = 0
	}
}

func (t Tuning) Cooldown() time.Duration {
	return time.Duration(t.CooldownSeconds) * time.Second
}

func (t Tuning) BreakConfirmation() time.Duration {
	return time.Duration(t.BreakConfirmationSeconds) * time.Second
}

func (t Tuning) SnapshotEvery() time.Duration {
	return time.Duration(t.SnapshotEverySeconds) * time.Second
}

func (t Tuning) CleanupEvery() time.Duration {
	return time.Duration(t.CleanupEverySeconds) * time.Second
}

func (t Tuning) IsAdmin(name string) bool {
	for _, a := range t.Admins {
		if strings.EqualFold(strings.TrimSpace(a), name) {
			return true
		}
	}
	return false
}
