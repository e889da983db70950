// Package ffmpeg 封装对外部 ffmpeg 命令的调用：按时间戳抽帧、faststart 重封装。
package ffmpeg

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
)

// Client ffmpeg 命令行客户端
type Client struct {
	bin string
}

// New 创建客户端，bin 为空时用 PATH 里的 ffmpeg
func New(bin string) *Client {
	if bin == "" {
		bin = "ffmpeg"
	}
	return &Client{bin: bin}
}

// ExtractFrame 从 videoPath 的第 seconds 秒抽一帧 JPEG 写到 outPath
func (c *Client) ExtractFrame(ctx context.Context, videoPath string, seconds float64, outPath string) error {
	if _, err := os.Stat(videoPath); err != nil {
		return fmt.Errorf("video file not accessible: %w", err)
	}

	args := []string{
		"-y",
		"-ss", strconv.FormatFloat(seconds, 'f', 3, 64),
		"-i", videoPath,
		"-frames:v", "1",
		"-q:v", "2",
		outPath,
	}
	return c.run(ctx, args)
}

// Faststart 无转码重封装，把 moov atom 挪到文件头，便于边下边播
func (c *Client) Faststart(ctx context.Context, inPath, outPath string) error {
	args := []string{
		"-y",
		"-i", inPath,
		"-movflags", "faststart",
		"-c", "copy",
		outPath,
	}
	return c.run(ctx, args)
}

func (c *Client) run(ctx context.Context, args []string) error {
	cmd := exec.CommandContext(ctx, c.bin, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg error: %v: %s", err, stderr.String())
	}
	return nil
}
