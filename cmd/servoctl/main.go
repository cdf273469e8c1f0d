// Command servoctl controls an array of Feetech servos on a shared serial
// bus: continuous position streaming, one-shot reads, middle-position
// calibration, ID reassignment, and operating-mode changes. Snapshots can
// be relayed over UDP and published over MQTT while streaming.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	servo "github.com/vassar-robotics/feetech-servo-sdk"
	"github.com/vassar-robotics/feetech-servo-sdk/relay"
	"github.com/vassar-robotics/feetech-servo-sdk/telemetry"
)

func main() {
	var (
		configPath  = flag.String("config", "", "YAML config file (flags override it)")
		port        = flag.String("port", "", "serial port (auto-detect if not specified)")
		baud        = flag.Int("baud", 1000000, "communication baud rate")
		variantName = flag.String("variant", "sts", "servo variant: sts or hls")
		idList      = flag.String("ids", "1,2,3,4,5,6", "comma-separated servo IDs")
		hz          = flag.Float64("hz", 30, "streaming frequency")
		once        = flag.Bool("once", false, "read positions once and exit")
		setMiddle   = flag.Bool("set-middle", false, "calibrate servos to the middle position (2048)")
		setID       = flag.String("set-id", "", "change a servo ID, as CURRENT:NEW")
		setMode     = flag.String("set-mode", "", "set a servo operating mode, as ID:MODE (mode 0-3)")
		yes         = flag.Bool("yes", false, "skip confirmation prompts")
		relayTarget = flag.String("relay-target", "", "UDP host:port to stream positions to")
		mqttBroker  = flag.String("mqtt-broker", "", "MQTT broker URL to publish positions to")
		mqttTopic   = flag.String("mqtt-topic", telemetry.DefaultTopic, "MQTT topic for position snapshots")
	)
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	cfg, err := buildConfig(*configPath, *port, *baud, *variantName, *idList, *relayTarget, *mqttBroker, *mqttTopic)
	if err != nil {
		fatal(logger, err)
	}

	ctrl, err := servo.New(cfg, servo.WithLogger(logger), servo.WithConfirm(promptConfirm))
	if err != nil {
		fatal(logger, err)
	}

	if err := ctrl.Connect(); err != nil {
		fatal(logger, err)
	}
	defer ctrl.Disconnect()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch {
	case *setID != "":
		err = runSetID(ctrl, *setID, !*yes)
	case *setMode != "":
		err = runSetMode(ctrl, *setMode)
	case *setMiddle:
		err = runSetMiddle(ctrl)
	case *once:
		err = runOnce(ctrl)
	default:
		err = runStream(ctx, ctrl, cfg, *hz, logger)
	}
	if err != nil && ctx.Err() == nil {
		ctrl.Disconnect()
		fatal(logger, err)
	}
}

func buildConfig(path, port string, baud int, variantName, idList, relayTarget, mqttBroker, mqttTopic string) (servo.Config, error) {
	var cfg servo.Config
	if path != "" {
		loaded, err := servo.LoadConfig(path)
		if err != nil {
			return servo.Config{}, err
		}
		cfg = loaded
	}

	if port != "" {
		cfg.Port = port
	}
	if cfg.Baud == 0 || baud != 1000000 {
		cfg.Baud = baud
	}
	if variantName != "sts" || cfg.Variant == servo.VariantSTS {
		variant, err := servo.ParseVariant(variantName)
		if err != nil {
			return servo.Config{}, err
		}
		cfg.Variant = variant
	}
	if len(cfg.ServoIDs) == 0 {
		ids, err := parseIDs(idList)
		if err != nil {
			return servo.Config{}, err
		}
		cfg.ServoIDs = ids
	}
	if relayTarget != "" {
		cfg.Relay = &servo.RelayConfig{Target: relayTarget}
	}
	if mqttBroker != "" {
		cfg.Telemetry = &servo.TelemetryConfig{Broker: mqttBroker, Topic: mqttTopic}
	}
	return cfg, nil
}

func parseIDs(s string) ([]int, error) {
	parts := strings.Split(s, ",")
	ids := make([]int, 0, len(parts))
	for _, part := range parts {
		id, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, fmt.Errorf("invalid servo ID list %q: %w", s, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func parsePair(s, what string) (int, int, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid %s %q, expected A:B", what, s)
	}
	a, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, 0, fmt.Errorf("invalid %s %q: %w", what, s, err)
	}
	b, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return 0, 0, fmt.Errorf("invalid %s %q: %w", what, s, err)
	}
	return a, b, nil
}

func promptConfirm(prompt string) bool {
	fmt.Fprintf(os.Stderr, "%s (yes/no): ", prompt)
	scanner := bufio.NewScanner(os.Stdin)
	if !scanner.Scan() {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(scanner.Text()), "yes")
}

func runSetID(ctrl *servo.Controller, arg string, confirm bool) error {
	currentID, newID, err := parsePair(arg, "ID pair")
	if err != nil {
		return err
	}
	changed, err := ctrl.SetDeviceID(currentID, newID, confirm)
	if err != nil {
		return err
	}
	if !changed {
		fmt.Println("ID change cancelled.")
		return nil
	}
	fmt.Printf("Servo ID changed from %d to %d. Power cycle the servo for the change to take effect.\n", currentID, newID)
	return nil
}

func runSetMode(ctrl *servo.Controller, arg string) error {
	id, mode, err := parsePair(arg, "mode assignment")
	if err != nil {
		return err
	}
	if err := ctrl.SetOperatingMode(id, servo.OperatingMode(mode)); err != nil {
		return err
	}
	fmt.Printf("Servo %d operating mode set to %v.\n", id, servo.OperatingMode(mode))
	return nil
}

func runSetMiddle(ctrl *servo.Controller) error {
	ok, err := ctrl.SetReferencePosition()
	if err != nil {
		return err
	}
	if ok {
		fmt.Println("All servos set to middle position (2048).")
	} else {
		fmt.Println("Some servos are not at the middle position; read positions for details.")
	}
	return nil
}

func runOnce(ctrl *servo.Controller) error {
	positions, err := ctrl.ReadPositions()
	if err != nil {
		return err
	}
	printPositions(positions)
	fmt.Println()
	return nil
}

func runStream(ctx context.Context, ctrl *servo.Controller, cfg servo.Config, hz float64, logger *slog.Logger) error {
	if hz <= 0 {
		return fmt.Errorf("streaming frequency must be positive, got %v", hz)
	}
	period := time.Duration(float64(time.Second) / hz)

	var sender *relay.Sender
	if cfg.Relay != nil {
		var err error
		sender, err = relay.Dial(cfg.Relay.Target)
		if err != nil {
			return err
		}
		defer sender.Close()
		logger.Info("relaying positions", "target", cfg.Relay.Target)
	}

	var publisher *telemetry.Publisher
	if cfg.Telemetry != nil {
		var err error
		publisher, err = telemetry.Connect(telemetry.Config{
			Broker:   cfg.Telemetry.Broker,
			ClientID: cfg.Telemetry.ClientID,
			Topic:    cfg.Telemetry.Topic,
			Username: cfg.Telemetry.Username,
			Password: cfg.Telemetry.Password,
		})
		if err != nil {
			return err
		}
		defer publisher.Close()
		logger.Info("publishing telemetry", "broker", cfg.Telemetry.Broker)
	}

	fmt.Printf("Streaming positions at %.1f Hz. Press Ctrl+C to stop.\n", hz)
	return ctrl.StreamPositions(ctx, period, func(positions map[int]int) {
		fmt.Print("\r")
		printPositions(positions)
		if sender != nil {
			if err := sender.Send(positions); err != nil {
				logger.Warn("relay send failed", "error", err)
			}
		}
		if publisher != nil {
			if err := publisher.PublishPositions(positions); err != nil {
				logger.Warn("telemetry publish failed", "error", err)
			}
		}
	})
}

func printPositions(positions map[int]int) {
	ids := make([]int, 0, len(positions))
	for id := range positions {
		ids = append(ids, id)
	}
	for i := 0; i < len(ids); i++ {
		for j := i + 1; j < len(ids); j++ {
			if ids[j] < ids[i] {
				ids[i], ids[j] = ids[j], ids[i]
			}
		}
	}
	for _, id := range ids {
		fmt.Printf("[%d] %4d  ", id, positions[id])
	}
}

func fatal(logger *slog.Logger, err error) {
	logger.Error(err.Error())
	os.Exit(1)
}
