package worker

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/bitfantasy/dealercare/internal/dealercare/service"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// FrameWorker 抽帧任务消费者：从 redis 队列取工单ID，调 FrameService 抽帧。
// 抽帧是 ffmpeg 外部进程，必须离开请求路径在这里跑。
type FrameWorker struct {
	rdb      *redis.Client
	frames   *service.FrameService
	logger   *zap.Logger
	stopping chan struct{}
	wg       sync.WaitGroup
}

func NewFrameWorker(rdb *redis.Client, frames *service.FrameService, logger *zap.Logger) *FrameWorker {
	return &FrameWorker{
		rdb:      rdb,
		frames:   frames,
		logger:   logger,
		stopping: make(chan struct{}),
	}
}

// Start 启动消费循环。没配 redis 时任务已在入队处同步执行，这里空转返回。
func (w *FrameWorker) Start(ctx context.Context) {
	if w.rdb == nil {
		w.logger.Info("frame worker disabled, redis not configured")
		return
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.logger.Info("frame worker started")

		for {
			select {
			case <-w.stopping:
				w.logger.Info("frame worker stopped")
				return
			case <-ctx.Done():
				return
			default:
			}

			// 阻塞等任务，超时醒来检查退出信号
			result, err := w.rdb.BRPop(ctx, 5*time.Second, service.FrameQueueKey).Result()
			if err != nil {
				if err == redis.Nil {
					continue
				}
				if ctx.Err() != nil {
					return
				}
				w.logger.Error("frame queue pop failed", zap.Error(err))
				time.Sleep(time.Second)
				continue
			}
			if len(result) < 2 {
				continue
			}

			w.process(ctx, result[1])
		}
	}()
}

func (w *FrameWorker) process(ctx context.Context, payload string) {
	orderID, err := strconv.ParseUint(payload, 10, 64)
	if err != nil {
		w.logger.Error("bad frame job payload", zap.String("payload", payload))
		return
	}

	if err := w.frames.ExtractForOrder(ctx, uint(orderID)); err != nil {
		w.logger.Error("frame extraction failed",
			zap.Uint64("order_id", orderID), zap.Error(err))
	}
}

// Shutdown 停止拉取任务，等在手任务处理完
func (w *FrameWorker) Shutdown() {
	close(w.stopping)
	w.wg.Wait()
}
