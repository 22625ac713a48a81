// Command devicesim imitates an edge camera: it reports growing per-person emotion
// counters and streams synthetic JPEG frames, over HTTP or MQTT.
package main

import (
	"bytes"
	"context"
	"encoding/base64"
	"flag"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/goccy/go-json"

	"github.com/your-org/emotion/internal/emotion"
	"github.com/your-org/emotion/internal/observability"
	"github.com/your-org/emotion/pkg/dto"
)

type sender interface {
	send(ctx context.Context, kind string, payload []byte) error
	close()
}

type httpSender struct {
	base   string
	client *http.Client
}

func (s *httpSender) send(ctx context.Context, kind string, payload []byte) error {
	path := "/api/emotions/batch"
	if kind == "frame" {
		path = "/api/stream/frame"
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.base+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: unexpected status %s", path, resp.Status)
	}
	return nil
}

func (s *httpSender) close() {}

type mqttSender struct {
	client mqtt.Client
	prefix string
	device string
}

func (s *mqttSender) send(_ context.Context, kind string, payload []byte) error {
	token := s.client.Publish(fmt.Sprintf("%s/%s/%s", s.prefix, s.device, kind), 0, false, payload)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("publish %s: timeout", kind)
	}
	return token.Error()
}

func (s *mqttSender) close() {
	s.client.Disconnect(250)
}

// crowd tracks cumulative emotion seconds per simulated person.
type crowd struct {
	rng    *rand.Rand
	people []string
	totals map[string]map[string]float64
}

func newCrowd(n int, rng *rand.Rand) *crowd {
	c := &crowd{rng: rng, totals: make(map[string]map[string]float64)}
	for i := 1; i <= n; i++ {
		id := fmt.Sprintf("person_%d", i)
		c.people = append(c.people, id)
		c.totals[id] = map[string]float64{"happy": 0, "sad": 0, "angry": 0}
	}
	return c
}

// advance credits elapsed seconds to one random emotion per person; some ticks stay neutral.
func (c *crowd) advance(elapsed time.Duration) {
	emotions := []string{"happy", "sad", "angry", ""}
	for _, id := range c.people {
		if e := emotions[c.rng.Intn(len(emotions))]; e != "" {
			c.totals[id][e] += elapsed.Seconds()
		}
	}
}

func (c *crowd) batch(deviceID string, at time.Time) dto.EmotionsBatchRequest {
	ts := emotion.FormatTimestamp(at)
	req := dto.EmotionsBatchRequest{DeviceID: &deviceID, Timestamp: &ts}
	for _, id := range c.people {
		cum := make(map[string]float64, len(c.totals[id]))
		for k, v := range c.totals[id] {
			cum[k] = v
		}
		req.People = append(req.People, dto.PersonCumulativeRequest{PersonID: &id, Cumulative: cum})
	}
	return req
}

// renderFrame draws a bar sweeping across a gradient so viewers can see the stream move.
func renderFrame(width, height, tick int) ([]byte, error) {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	barX := (tick * 8) % width
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			c := color.RGBA{R: uint8(x * 255 / width), G: uint8(y * 255 / height), B: 96, A: 255}
			if x >= barX && x < barX+12 {
				c = color.RGBA{R: 255, G: 255, B: 255, A: 255}
			}
			img.SetRGBA(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 70}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func main() {
	mode := flag.String("mode", "http", "transport: http or mqtt")
	apiURL := flag.String("api", "http://localhost:8000", "API base URL (http mode)")
	broker := flag.String("broker", "tcp://localhost:1883", "MQTT broker address (mqtt mode)")
	prefix := flag.String("prefix", "emotion", "MQTT topic prefix (mqtt mode)")
	deviceID := flag.String("device", "jetson_1", "device identifier")
	people := flag.Int("people", 3, "number of simulated people")
	batchInterval := flag.Duration("interval", 2*time.Second, "interval between emotion batches")
	frameInterval := flag.Duration("frame-interval", 200*time.Millisecond, "interval between frames, 0 disables frames")
	width := flag.Int("width", 320, "frame width")
	height := flag.Int("height", 240, "frame height")
	flag.Parse()

	observability.SetupLogger("info", "text")

	var out sender
	switch *mode {
	case "http":
		out = &httpSender{base: *apiURL, client: &http.Client{Timeout: 5 * time.Second}}
	case "mqtt":
		clientID := fmt.Sprintf("%s-simulator-%d", *deviceID, time.Now().UnixNano())
		opts := mqtt.NewClientOptions().AddBroker(*broker).SetClientID(clientID).SetOrderMatters(false)
		client := mqtt.NewClient(opts)
		if token := client.Connect(); token.Wait() && token.Error() != nil {
			slog.Error("connect to broker", "broker", *broker, "error", token.Error())
			os.Exit(1)
		}
		out = &mqttSender{client: client, prefix: *prefix, device: *deviceID}
	default:
		fmt.Fprintf(os.Stderr, "unknown mode %q\n", *mode)
		os.Exit(2)
	}
	defer out.close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("device simulator started", "mode", *mode, "device_id", *deviceID, "people", *people)

	c := newCrowd(*people, rand.New(rand.NewSource(time.Now().UnixNano())))

	batchTicker := time.NewTicker(*batchInterval)
	defer batchTicker.Stop()

	var frameC <-chan time.Time
	if *frameInterval > 0 {
		frameTicker := time.NewTicker(*frameInterval)
		defer frameTicker.Stop()
		frameC = frameTicker.C
	}

	tick := 0
	for {
		select {
		case <-ctx.Done():
			slog.Info("device simulator stopped")
			return
		case now := <-batchTicker.C:
			c.advance(*batchInterval)
			payload, err := json.Marshal(c.batch(*deviceID, now))
			if err != nil {
				slog.Error("encode batch", "error", err)
				continue
			}
			if err := out.send(ctx, "batch", payload); err != nil {
				slog.Warn("send batch", "error", err)
				continue
			}
			slog.Info("batch sent", "people", *people)
		case now := <-frameC:
			tick++
			jpg, err := renderFrame(*width, *height, tick)
			if err != nil {
				slog.Error("render frame", "error", err)
				continue
			}
			ts := emotion.FormatTimestamp(now)
			payload, err := json.Marshal(dto.FrameUploadRequest{
				DeviceID:  deviceID,
				FrameB64:  base64.StdEncoding.EncodeToString(jpg),
				Timestamp: &ts,
			})
			if err != nil {
				slog.Error("encode frame", "error", err)
				continue
			}
			if err := out.send(ctx, "frame", payload); err != nil {
				slog.Debug("send frame", "error", err)
			}
		}
	}
}
