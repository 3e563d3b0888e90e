package cmd

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"math"
	"os"
	"sync"

	"github.com/andresmejia3/formcheck/internal/types"
	"github.com/andresmejia3/formcheck/internal/utils"
	"github.com/andresmejia3/formcheck/internal/worker"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

const megabyte = 1024 * 1024

var scanOpts Options

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Run pose estimation over a workout video and analyze it",
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		return runScan(cmd.Context(), scanOpts)
	},
}

func init() {
	addSessionFlags(scanCmd, &scanOpts)
	scanCmd.Flags().StringVarP(&scanOpts.InputPath, "input", "i", "", "Path to video")
	scanCmd.Flags().IntVarP(&scanOpts.NthFrame, "nth-frame", "n", 1, "Pose sampling interval (e.g. analyze every 2nd frame)")
	scanCmd.Flags().IntVarP(&scanOpts.NumEngines, "workers", "w", 1, "Number of parallel pose workers")
	scanCmd.Flags().Float64Var(&scanOpts.FPS, "fps", 0, "Resample the video to this frame rate before pose estimation (0 keeps the source rate)")
	scanCmd.Flags().StringVar(&scanOpts.WorkerScript, "worker-script", worker.DefaultScript, "Pose worker entry point")

	scanCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(scanCmd)
}

// Buffer pool to reduce GC pressure during scanning
var frameBufferPool = sync.Pool{
	New: func() interface{} { return make([]byte, 0, megabyte) },
}

// runScan orchestrates the video pipeline: FFmpeg streaming, the pose worker
// pool, the ordered aggregator feeding the engine, and progress tracking.
func runScan(ctx context.Context, opts Options) error {
	if err := validateScanFlags(&opts); err != nil {
		utils.ShowError("Invalid arguments", err, nil)
		return err
	}

	e, err := buildEngine(opts)
	if err != nil {
		utils.ShowError("Failed to load rules", err, nil)
		return err
	}

	fps := opts.FPS
	if fps <= 0 {
		if fps, err = utils.GetVideoFPS(ctx, opts.InputPath); err != nil {
			utils.ShowError("Failed to determine video FPS", err, nil)
			return err
		}
	}
	fmt.Fprintf(os.Stderr, "🎞️  %s at %.2f fps, analyzing every %d frame(s)\n", opts.InputPath, fps, opts.NthFrame)
	fmt.Fprintf(os.Stderr, "⚙️  Spawning %d Pose Worker(s)...\n", opts.NumEngines)

	totalVideoFrames := -1
	if opts.FPS <= 0 {
		if n := utils.GetTotalFrames(ctx, opts.InputPath); n > 0 {
			totalVideoFrames = n
		}
	}

	bar := progressbar.NewOptions(totalVideoFrames,
		progressbar.OptionSetDescription("🏋️ Scanning"),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
	)

	taskChan := make(chan types.FrameTask, opts.NumEngines)
	resultsChan := make(chan poseResult, opts.NumEngines*2)
	var wg sync.WaitGroup

	// Aggregator must run concurrently to prevent deadlock on resultsChan
	sess := newSession(e, opts)
	aggDone := make(chan struct{})
	go func() {
		aggregate(resultsChan, opts.NthFrame, fps, sess)
		close(aggDone)
	}()

	for i := 0; i < opts.NumEngines; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			startWorker(workerID, opts.WorkerScript, taskChan, resultsChan)
		}(i)
	}

	ffmpeg := utils.NewFFmpegCmd(ctx, opts.InputPath, opts.FPS)

	var stderrBuf bytes.Buffer
	ffmpeg.Stderr = &stderrBuf

	ffmpegOut, err := ffmpeg.StdoutPipe()
	if err != nil {
		utils.Die("Failed to create FFmpeg stdout pipe", err, nil)
	}
	defer ffmpegOut.Close() // Ensure pipe is closed to prevent leaks/zombies

	if err := ffmpeg.Start(); err != nil {
		utils.Die("Failed to start FFmpeg", err, nil)
	}

	// Frame splitter & nth-frame logic
	scanner := bufio.NewScanner(ffmpegOut)
	scanner.Buffer(make([]byte, megabyte), 64*megabyte)
	scanner.Split(utils.SplitJpeg)

	totalFrames := 0
	sentFrames := 0
	for scanner.Scan() {
		if ctx.Err() != nil {
			break
		}
		totalFrames++
		bar.Add(1)

		if totalFrames%opts.NthFrame == 0 {
			buf := frameBufferPool.Get().([]byte)
			if cap(buf) < len(scanner.Bytes()) {
				buf = make([]byte, len(scanner.Bytes()))
			}
			buf = buf[:len(scanner.Bytes())]
			copy(buf, scanner.Bytes())
			taskChan <- types.FrameTask{Index: totalFrames, Data: buf}
			sentFrames++
		}
	}

	scanErr := scanner.Err()
	close(taskChan)
	wg.Wait()
	close(resultsChan)
	<-aggDone
	bar.Finish()

	if err := ctx.Err(); err != nil {
		ffmpeg.Wait()
		fmt.Fprintf(os.Stderr, "\n🛑 Scan interrupted after %d frames.\n", totalFrames)
		return err
	}
	if scanErr != nil {
		utils.ShowError("Frame scanner failed", scanErr, nil)
		return scanErr
	}
	if err := ffmpeg.Wait(); err != nil {
		if stderrBuf.Len() > 0 {
			fmt.Fprintf(os.Stderr, "\nFFmpeg Logs:\n%s\n", stderrBuf.String())
		}
		utils.ShowError("FFmpeg execution failed", err, nil)
		return err
	}

	fmt.Fprintf(os.Stderr, "\n🏁 Scan Complete. Analyzed %d frames out of %d total.\n", sentFrames, totalFrames)
	return sess.finish(ctx, opts, 0)
}

// poseResult wraps the output from a worker to be sent to the aggregator.
// A nil Landmarks map means nobody was found in the frame.
type poseResult struct {
	Index     int
	Landmarks map[string]types.Landmark
}

// startWorker manages the lifecycle of a single pose worker process.
func startWorker(id int, script string, tasks <-chan types.FrameTask, results chan<- poseResult) {
	w, err := worker.NewPoseWorker(id, script)
	if err != nil {
		utils.Die("Worker startup failed", err, nil)
	}
	defer w.Close()

	for task := range tasks {
		landmarks, err := w.ProcessFrame(task.Data)

		// Return buffer to pool immediately after sending
		frameBufferPool.Put(task.Data[:0])

		if err != nil {
			// DRAIN: Wait for process to exit and capture final stderr logs
			w.Close()
			utils.Die("Pose worker crashed", err, w.Cmd)
		}

		results <- poseResult{Index: task.Index, Landmarks: landmarks}
	}
}

// aggregate re-orders worker output by frame index and feeds the engine
// serially. Frame 1 is t=0.
func aggregate(results <-chan poseResult, nth int, fps float64, sess *session) {
	// Worker 2 might finish before Worker 1
	buffer := make(map[int]poseResult)
	nextFrame := nth

	for res := range results {
		buffer[res.Index] = res

		for {
			frame, ok := buffer[nextFrame]
			if !ok {
				break
			}
			delete(buffer, nextFrame)

			sample := types.JointSample{Index: frame.Index, TimestampMS: frameTimestampMS(frame.Index, fps)}
			sample.SetLandmarks(frame.Landmarks)
			sess.feed(sample.TimestampMS, sess.engine.Analyze(sample))

			nextFrame += nth
		}
	}

	if len(buffer) > 0 {
		fmt.Fprintf(os.Stderr, "\n⚠️  %d frame(s) arrived out of sequence and were not analyzed\n", len(buffer))
	}
}

func frameTimestampMS(index int, fps float64) int64 {
	if fps <= 0 {
		return 0
	}
	return int64(math.Round(float64(index-1) * 1000 / fps))
}

// validateScanFlags ensures all CLI arguments are valid before starting heavy processes.
func validateScanFlags(opts *Options) error {
	if err := validateSessionFlags(opts); err != nil {
		return err
	}
	if opts.NthFrame < 1 {
		return fmt.Errorf("nth-frame must be >= 1, got %d", opts.NthFrame)
	}
	if opts.NumEngines < 1 {
		opts.NumEngines = 1
	}
	if opts.FPS < 0 {
		return fmt.Errorf("fps must be >= 0, got %f", opts.FPS)
	}
	return nil
}
