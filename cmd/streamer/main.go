// Command streamer runs the acquisition/DSP/ring/control daemon plus
// the optional WebSocket fan-out, metrics, and MQTT heartbeat.
package main

import (
	"context"
	"encoding/binary"
	"log"
	"math"
	"net/http"
	"time"

	"github.com/spf13/pflag"

	"github.com/cwsl/sdrcore/internal/config"
	"github.com/cwsl/sdrcore/internal/daemon"
	"github.com/cwsl/sdrcore/internal/fanout"
	"github.com/cwsl/sdrcore/internal/frame"
	"github.com/cwsl/sdrcore/internal/metrics"
	"github.com/cwsl/sdrcore/internal/mqttstatus"
	"github.com/cwsl/sdrcore/internal/radio"
	"github.com/cwsl/sdrcore/internal/ringreader"
)

func main() {
	var (
		configPath = pflag.String("config", "sdrcore.yaml", "configuration file")
		freq       = pflag.Float64P("freq", "f", 0, "override center frequency in Hz")
		rate       = pflag.Float64P("rate", "r", 0, "override sample rate in Hz")
		gain       = pflag.Float64P("gain", "g", 0, "override gain in dB")
		fftSize    = pflag.Int("fft-size", 0, "override FFT size")
		bandwidth  = pflag.Float64("bw", 0, "override bandwidth in Hz")
		antenna    = pflag.String("ant", "", "override antenna port")
		device     = pflag.String("device", "", "override radio driver args")
		binary     = pflag.String("binary", "", "override radio driver kind (simulated, uhd, soapy)")
	)
	pflag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("streamer: %v", err)
	}
	if *freq != 0 {
		cfg.Radio.CenterHz = *freq
	}
	if *rate != 0 {
		cfg.Radio.SampleRateHz = *rate
	}
	if *gain != 0 {
		cfg.Radio.GainDB = *gain
	}
	if *fftSize != 0 {
		cfg.Ring.FFTSize = uint32(*fftSize)
	}
	if *bandwidth != 0 {
		cfg.Radio.BandwidthHz = *bandwidth
	}
	if *antenna != "" {
		cfg.Radio.AntennaPort = *antenna
	}
	if *device != "" {
		cfg.Radio.Args = *device
	}
	if *binary != "" {
		cfg.Radio.Driver = *binary
	}

	rd, err := radio.Open(radio.Kind(cfg.Radio.Driver), cfg.Radio.Args, radio.SimulatedConfig{
		Tones: []radio.Tone{
			{OffsetHz: 50_000, Amplitude: 0.8},
		},
		NoiseFloor: 0.01,
		HardwareInfo: radio.HardwareInfo{
			Manufacturer: "sdrcore",
			Product:      "simulated",
		},
	})
	if err != nil {
		log.Fatalf("streamer: open radio: %v", err)
	}

	d, err := daemon.New(daemon.Config{
		Radio:          rd,
		RingName:       cfg.Ring.Name,
		RingSlots:      cfg.Ring.Slots,
		FFTSize:        cfg.Ring.FFTSize,
		Channels:       cfg.Ring.Channels,
		SampleRateHz:   cfg.Radio.SampleRateHz,
		CenterHz:       cfg.Radio.CenterHz,
		WindowKind:     cfg.Ring.Window,
		CoherentGain:   cfg.Ring.CoherentGain,
		BlockTimeout:   cfg.Control.BlockTimeout,
		ControlSocket:  cfg.Control.SocketPath,
		StatusInterval: cfg.Control.StatusInterval,
	})
	if err != nil {
		log.Fatalf("streamer: %v", err)
	}

	// daemon.New configures only center frequency and sample rate; apply
	// the remaining radio settings before the acquisition loop takes
	// ownership of the handle.
	if _, err := rd.Configure(radio.Config{
		CenterHz:     cfg.Radio.CenterHz,
		SampleRateHz: cfg.Radio.SampleRateHz,
		BandwidthHz:  cfg.Radio.BandwidthHz,
		GainDB:       cfg.Radio.GainDB,
		AntennaPort:  cfg.Radio.AntennaPort,
	}); err != nil {
		log.Fatalf("streamer: configure radio: %v", err)
	}

	if cfg.Metrics.Enabled {
		metrics.New()
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", metrics.Handler())
			if err := http.ListenAndServe(cfg.Metrics.Addr, mux); err != nil {
				log.Printf("streamer: metrics listener: %v", err)
			}
		}()
	}

	if cfg.Fanout.Enabled {
		srv := fanout.New()
		d.SetStatusSink(srv)
		go runFanout(srv, cfg.Ring.Name, cfg.Ring.FFTSize, cfg.Ring.Channels, cfg.Fanout.Addr, cfg.Fanout.Path)
	}

	if cfg.MQTT.Enabled {
		pub, err := mqttstatus.New(mqttstatus.Config{
			Broker:   cfg.MQTT.Broker,
			Username: cfg.MQTT.Username,
			Password: cfg.MQTT.Password,
			Topic:    cfg.MQTT.Topic,
			Interval: cfg.MQTT.Interval,
		})
		if err != nil {
			log.Printf("streamer: mqtt status disabled: %v", err)
		} else {
			go pub.Run(context.Background(), d)
		}
	}

	if err := daemon.RunUntilSignal(d); err != nil {
		log.Fatalf("streamer: %v", err)
	}
}

// runFanout attaches to the spectrum ring as a reader and republishes
// every frame to connected WebSocket subscribers as a "FFT1" network
// message, sharing srv with the daemon's periodic "STT1" status
// broadcast. It retries attaching for a few seconds since the ring file
// may not exist yet the instant this goroutine starts.
func runFanout(srv *fanout.Server, ringName string, fftSize, channels uint32, addr, path string) {
	var rdr *ringreader.Reader
	var err error
	for i := 0; i < 50; i++ {
		rdr, err = ringreader.Attach(ringName, fftSize, channels)
		if err == nil {
			break
		}
		time.Sleep(100 * time.Millisecond)
	}
	if err != nil {
		log.Printf("streamer: fanout: attach ring: %v", err)
		return
	}

	mux := http.NewServeMux()
	mux.Handle(path, http.HandlerFunc(srv.ServeHTTP))
	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			log.Printf("streamer: fanout listener: %v", err)
		}
	}()

	buf := make([]byte, frame.NetSpectrumHeaderSize+4*int(fftSize))
	for {
		events, err := rdr.Next(4)
		if err != nil {
			log.Printf("streamer: fanout: read ring: %v", err)
			time.Sleep(50 * time.Millisecond)
			continue
		}
		if len(events) == 0 {
			time.Sleep(20 * time.Millisecond)
			continue
		}
		for _, ev := range events {
			if ev.Kind != ringreader.EventFrame {
				continue
			}
			hdr := ev.Frame.Header
			frame.EncodeNetSpectrumHeader(buf, frame.NetSpectrumHeader{
				TimestampSec: hdr.TimestampSec,
				CenterHz:     hdr.CenterHz,
				FFTSize:      hdr.FFTSize,
				Flags:        hdr.Flags,
				PeakBin:      hdr.Peaks[0].Bin,
				PeakPower:    hdr.Peaks[0].Power,
			})
			off := frame.NetSpectrumHeaderSize
			for _, v := range ev.Frame.Payload[0] {
				binary.BigEndian.PutUint32(buf[off:], math.Float32bits(v))
				off += 4
			}
			srv.Broadcast(buf)
		}
	}
}
