/*
gpucore replays a small command stream on the configured backend: it clears
a render target, copies it into a readback buffer and reads the first texel
back through a map read.
*/
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/spaghettifunk/gpucore/engine"
	"github.com/spaghettifunk/gpucore/engine/core"
	"github.com/spaghettifunk/gpucore/engine/renderer/commands"
	"github.com/spaghettifunk/gpucore/engine/renderer/metadata"
	"github.com/spaghettifunk/gpucore/engine/renderer/resource"
)

const targetSize = 4

func main() {
	configPath := flag.String("config", "gpucore.toml", "path to the TOML configuration")
	backendName := flag.String("backend", "", "overrides device.backend")
	flag.Parse()

	cfg := core.DefaultConfig()
	if _, err := os.Stat(*configPath); err == nil {
		if cfg, err = core.LoadConfig(*configPath); err != nil {
			core.LogFatal(err.Error())
		}
		watcher, err := core.WatchConfig(*configPath, nil)
		if err != nil {
			core.LogWarn("config hot reload disabled: %s", err)
		} else {
			defer watcher.Close()
		}
	}
	if *backendName != "" {
		cfg.Device.Backend = *backendName
		if err := cfg.Validate(); err != nil {
			core.LogFatal(err.Error())
		}
	}
	if err := core.LogConfigure(cfg.Log); err != nil {
		core.LogFatal(err.Error())
	}

	// signal channel to capture system calls
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT)
	go func() {
		<-sigCh
		cancel()
	}()

	backend, err := engine.NewBackend(cfg.Device)
	if err != nil {
		core.LogFatal(err.Error())
	}
	device, err := engine.New(cfg, backend)
	if err != nil {
		core.LogFatal(err.Error())
	}

	if err := run(ctx, device); err != nil {
		core.LogError(err.Error())
	}
	if err := device.Shutdown(context.Background()); err != nil {
		core.LogFatal(err.Error())
	}
}

func run(ctx context.Context, device *engine.Device) error {
	color, err := device.CreateTexture(resource.Descriptor{
		Label:        "demo-target",
		Width:        targetSize,
		Height:       targetSize,
		Format:       metadata.TextureFormatR8G8B8A8Unorm,
		AllowedUsage: metadata.UsageOutputAttachment | metadata.UsageTransferSrc,
		InitialUsage: metadata.UsageOutputAttachment,
	})
	if err != nil {
		return err
	}
	rowPitch := color.RowPitch()
	readback, err := device.CreateBuffer(resource.Descriptor{
		Label:        "demo-readback",
		Size:         uint64(rowPitch) * targetSize,
		AllowedUsage: metadata.UsageMapRead | metadata.UsageTransferDst,
		InitialUsage: metadata.UsageTransferDst,
	})
	if err != nil {
		return err
	}

	renderPass := device.RegisterRenderPass(metadata.NewRenderPass(
		[]metadata.AttachmentInfo{{Format: color.Format, ColorLoadOp: metadata.LoadOpClear}},
		[]metadata.SubpassInfo{{ColorAttachmentsSet: 0b1}},
	))
	framebuffer, err := device.RegisterFramebuffer(&metadata.Framebuffer{
		Width:       targetSize,
		Height:      targetSize,
		Attachments: []uint32{color.ID},
		Clears:      []metadata.ClearValue{{Color: [4]float32{0.2, 0.4, 0.6, 1}}},
	})
	if err != nil {
		return err
	}

	stream := commands.NewEncoder().
		Encode(commands.BeginRenderPassCmd{RenderPass: renderPass, Framebuffer: framebuffer}).
		Encode(commands.BeginRenderSubpassCmd{}).
		Encode(commands.EndRenderSubpassCmd{}).
		Encode(commands.EndRenderPassCmd{}).
		Encode(commands.TransitionTextureUsageCmd{Texture: color.ID, Usage: metadata.UsageTransferSrc}).
		Encode(commands.CopyTextureToBufferCmd{
			Source:      commands.TextureCopyLocation{Texture: color.ID, Width: targetSize, Height: targetSize, Depth: 1},
			Destination: commands.BufferCopyLocation{Buffer: readback.ID},
			RowPitch:    rowPitch,
		}).
		Finish()
	serial, err := device.Submit(stream)
	if err != nil {
		return err
	}
	core.LogInfo("submitted %d bytes of commands as serial %d", stream.Size(), serial)

	err = device.MapReadAsync(readback.ID, 0, uint64(rowPitch), func(status engine.MapReadStatus, data []byte) {
		if status != engine.MapReadStatusSuccess {
			core.LogWarn("map read finished with status %s", status)
			return
		}
		core.LogInfo("first texel: %v", data[:4])
	})
	if err != nil {
		return err
	}
	if err := device.WaitIdle(ctx); err != nil {
		return err
	}

	stats := device.Executor().Stats()
	core.LogInfo("replayed %d commands: %d clears, %d copies, %d barriers in %.3fms",
		stats.Commands, stats.Clears, stats.Copies, stats.Barriers, device.Executor().Metrics().AverageMS())

	if err := device.Unmap(readback.ID); err != nil {
		return err
	}
	if err := device.Release(readback.ID); err != nil {
		return err
	}
	return device.Release(color.ID)
}
