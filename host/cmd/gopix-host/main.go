package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/karlmutch/envflag" // Forked copy of https://github.com/GoBike/envflag
	"github.com/lucasb-eyer/go-colorful"
	logxi "github.com/mgutz/logxi/v1"

	"gopix/host/mcu"
	"gopix/protocol"
)

var (
	logger = logxi.New("gopix-host")

	device  = flag.String("device", "/dev/ttyACM0", "Serial device path")
	baud    = flag.Int("baud", 250000, "Baud rate (ignored for USB CDC)")
	verbose = flag.Bool("v", false, "When enabled will print internal logging for this tool")
)

// Format codes understood by configure_channel
const (
	formatRGB  = 0x01
	formatRGBW = 0x02
)

func usage() {
	fmt.Fprintln(os.Stderr, path.Base(os.Args[0]))
	fmt.Fprintln(os.Stderr, "usage: ", os.Args[0], "[options]")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "gopix-host drives a gopix pixel controller over USB serial")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Options:")
	fmt.Fprintln(os.Stderr, "")
	flag.PrintDefaults()
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Options can also be set through environment variables by changing dashes '-' to underscores and using upper case.")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "log levels are handled by the LOGXI env variables, these are documented at https://github.com/mgutz/logxi")
}

func init() {
	flag.Usage = usage
}

func main() {
	// Parse the CLI flags
	if !flag.Parsed() {
		envflag.Parse()
	}

	if *verbose {
		logger.SetLevel(logxi.LevelDebug)
	}

	// Create MCU instance
	mcuConn := mcu.NewMCU()

	// Connect to MCU
	logger.Debug("connecting", "device", *device, "baud", *baud)
	if err := mcuConn.Connect(*device); err != nil {
		logger.Error("failed to connect", "device", *device, "error", err.Error())
		os.Exit(1)
	}
	defer mcuConn.Close()

	// Retrieve dictionary
	if err := mcuConn.RetrieveDictionary(); err != nil {
		logger.Error("failed to retrieve dictionary", "error", err.Error())
		os.Exit(1)
	}

	// Print dictionary summary
	mcuConn.PrintDictionary()

	// Interactive command loop
	fmt.Println("Enter commands (type 'help' for available commands, 'quit' to exit):")
	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		parts := strings.Fields(line)
		cmd := parts[0]
		args := parts[1:]

		var err error
		switch cmd {
		case "quit", "exit", "q":
			fmt.Println("Goodbye!")
			return

		case "help", "?":
			printHelp()

		case "dict":
			mcuConn.PrintDictionary()

		case "raw":
			// Print raw dictionary data
			raw := mcuConn.GetDictionaryRaw()
			fmt.Printf("Raw dictionary data (%d bytes):\n%s\n", len(raw), string(raw))

		case "configure":
			err = cmdConfigure(mcuConn, args)

		case "fill":
			err = cmdFill(mcuConn, args)

		case "gradient":
			err = cmdGradient(mcuConn, args)

		case "rainbow":
			err = cmdRainbow(mcuConn, args)

		case "off":
			err = cmdOff(mcuConn, args)

		case "get_uptime", "get_clock", "get_config":
			err = sendSimple(mcuConn, cmd)

		default:
			fmt.Printf("Unknown command: %s (type 'help' for available commands)\n", cmd)
		}

		if err != nil {
			logger.Error("command failed", "command", cmd, "error", err.Error())
		}
	}
}

func printHelp() {
	fmt.Println(`Commands:
  dict                                    Show the firmware dictionary
  raw                                     Dump the raw dictionary bytes
  configure <ch> <rgb|rgbw>               Bind a channel to its pin
  fill <ch> <pixels> <#hex>               Fill a strip with one color
  gradient <ch> <pixels> <#hex1> <#hex2>  Paint a Lab-blended gradient
  rainbow <ch> <pixels>                   Paint a full hue sweep
  off <ch> <pixels>                       Blank a strip
  get_uptime | get_clock | get_config     Query firmware state
  quit                                    Exit`)
}

func parseChannel(s string) (uint8, error) {
	v, err := strconv.ParseUint(s, 10, 8)
	if err != nil || v > 7 {
		return 0, fmt.Errorf("channel must be 0-7")
	}
	return uint8(v), nil
}

func parseCount(s string) (int, error) {
	v, err := strconv.Atoi(s)
	if err != nil || v < 1 || v > 1365 {
		return 0, fmt.Errorf("pixel count must be 1-1365")
	}
	return v, nil
}

func cmdConfigure(m *mcu.MCU, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: configure <ch> <rgb|rgbw>")
	}
	ch, err := parseChannel(args[0])
	if err != nil {
		return err
	}

	var format uint8
	switch args[1] {
	case "rgb":
		format = formatRGB
	case "rgbw":
		format = formatRGBW
	default:
		return fmt.Errorf("format must be rgb or rgbw")
	}

	if err := m.ConfigureChannel(ch, format); err != nil {
		return err
	}
	fmt.Printf("Channel %d configured (%s) on gpio%d\n", ch, args[1], int(ch)+3)
	return nil
}

func cmdFill(m *mcu.MCU, args []string) error {
	if len(args) != 3 {
		return fmt.Errorf("usage: fill <ch> <pixels> <#hex>")
	}
	ch, err := parseChannel(args[0])
	if err != nil {
		return err
	}
	count, err := parseCount(args[1])
	if err != nil {
		return err
	}
	c, err := colorful.Hex(args[2])
	if err != nil {
		return fmt.Errorf("bad color %q: %w", args[2], err)
	}

	r, g, b := c.RGB255()
	frame := make([]byte, 0, count*3)
	for i := 0; i < count; i++ {
		frame = appendPixel(frame, r, g, b)
	}
	return m.SendFrame(ch, frame)
}

func cmdGradient(m *mcu.MCU, args []string) error {
	if len(args) != 4 {
		return fmt.Errorf("usage: gradient <ch> <pixels> <#hex1> <#hex2>")
	}
	ch, err := parseChannel(args[0])
	if err != nil {
		return err
	}
	count, err := parseCount(args[1])
	if err != nil {
		return err
	}
	c1, err := colorful.Hex(args[2])
	if err != nil {
		return fmt.Errorf("bad color %q: %w", args[2], err)
	}
	c2, err := colorful.Hex(args[3])
	if err != nil {
		return fmt.Errorf("bad color %q: %w", args[3], err)
	}

	// Lab blending avoids the muddy midpoints RGB interpolation produces
	frame := make([]byte, 0, count*3)
	for i := 0; i < count; i++ {
		r, g, b := c1.BlendLab(c2, float64(i)/float64(count)).RGB255()
		frame = appendPixel(frame, r, g, b)
	}
	return m.SendFrame(ch, frame)
}

func cmdRainbow(m *mcu.MCU, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: rainbow <ch> <pixels>")
	}
	ch, err := parseChannel(args[0])
	if err != nil {
		return err
	}
	count, err := parseCount(args[1])
	if err != nil {
		return err
	}

	frame := make([]byte, 0, count*3)
	for i := 0; i < count; i++ {
		r, g, b := colorful.Hsv(float64(i)*360.0/float64(count), 1, 1).RGB255()
		frame = appendPixel(frame, r, g, b)
	}
	return m.SendFrame(ch, frame)
}

func cmdOff(m *mcu.MCU, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: off <ch> <pixels>")
	}
	ch, err := parseChannel(args[0])
	if err != nil {
		return err
	}
	count, err := parseCount(args[1])
	if err != nil {
		return err
	}
	return m.SendFrame(ch, make([]byte, count*3))
}

// appendPixel appends one pixel in GRB wire order
func appendPixel(frame []byte, r, g, b uint8) []byte {
	return append(frame, g, r, b)
}

func sendSimple(m *mcu.MCU, name string) error {
	if err := m.SendCommand(name, func(output protocol.OutputBuffer) {}); err != nil {
		return err
	}

	// Give the async response a moment to land in the log
	time.Sleep(100 * time.Millisecond)
	fmt.Println("Command sent")
	return nil
}
