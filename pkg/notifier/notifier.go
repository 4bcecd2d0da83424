// Package notifier sends desktop notifications about builds
package notifier

import (
	"fmt"
	"time"

	"github.com/gen2brain/beeep"

	"github.com/dualpack/dualpack/pkg/logger"
)

// BuildNotifier handles build notifications
type BuildNotifier struct {
	enabled      bool
	title        string
	successSound string
	failureSound string
	logger       logger.Logger

	notify func(title, message, icon string) error
	beep   func(freq float64, duration int) error
}

// Config represents notification configuration
type Config struct {
	Enabled      bool
	Title        string
	SuccessSound string
	FailureSound string
}

// New creates a new build notifier
func New(config Config, log logger.Logger) *BuildNotifier {
	if log == nil {
		log = logger.NewNopLogger()
	}
	title := config.Title
	if title == "" {
		title = "dualpack"
	}
	return &BuildNotifier{
		enabled:      config.Enabled,
		title:        title,
		successSound: config.SuccessSound,
		failureSound: config.FailureSound,
		logger:       log,
		notify:       beeep.Notify,
		beep:         beeep.Beep,
	}
}

// SetSender replaces the desktop notification call
func (n *BuildNotifier) SetSender(send func(title, message, icon string) error) {
	n.notify = send
	n.beep = func(float64, int) error { return nil }
}

// Enabled reports whether notifications are sent
func (n *BuildNotifier) Enabled() bool {
	return n.enabled
}

// NotifyPlanComposed notifies that the specifications of env are ready
func (n *BuildNotifier) NotifyPlanComposed(env string, specs int) {
	n.send("📦 "+n.title, fmt.Sprintf("Composed %d %s specifications", specs, env), "")
}

// NotifyBuildSuccess notifies that a build succeeded
func (n *BuildNotifier) NotifyBuildSuccess(env string, duration time.Duration) {
	n.send("✅ Build Succeeded", fmt.Sprintf("%s %s build in %s", n.title, env, formatDuration(duration)), n.successSound)
}

// NotifyBuildFailure notifies that a build failed
func (n *BuildNotifier) NotifyBuildFailure(env string, err error) {
	n.send("❌ Build Failed", fmt.Sprintf("%s %s: %v", n.title, env, err), n.failureSound)
}

// NotifyCriticalFailures notifies about failed critical style jobs
func (n *BuildNotifier) NotifyCriticalFailures(failed, total int) {
	if failed == 0 {
		return
	}
	n.send("⚠️ Critical CSS", fmt.Sprintf("%d of %d pages failed", failed, total), n.failureSound)
}

func (n *BuildNotifier) send(title, message, soundName string) {
	if !n.enabled {
		return
	}
	if err := n.notify(title, message, ""); err != nil {
		n.logger.Debug("Failed to send notification", logger.WithError(err))
		n.logger.Info(fmt.Sprintf("%s: %s", title, message))
	}
	if soundName != "" {
		if err := n.beep(beeep.DefaultFreq, beeep.DefaultDuration); err != nil {
			n.logger.Debug("Failed to play sound", logger.WithError(err))
		}
	}
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
}
