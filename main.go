package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/ByLCY/folio/config"
	"github.com/ByLCY/folio/export"
	"github.com/ByLCY/folio/layout"
	"github.com/ByLCY/folio/logger"
	"github.com/ByLCY/folio/printdoc"
	canvasrenderer "github.com/ByLCY/folio/renderer/canvas"
	"github.com/ByLCY/folio/server"
	"github.com/ByLCY/folio/workbook"
)

// globalFlags 对所有子命令生效。
type globalFlags struct {
	Config   string
	LogLevel string
	OutDir   string
}

func (g *globalFlags) bind(fs *pflag.FlagSet) {
	fs.StringVarP(&g.Config, "config", "c", "", "YAML 配置文件路径")
	fs.StringVar(&g.LogLevel, "log-level", "", "日志级别：debug, info, warn, error")
	fs.StringVarP(&g.OutDir, "out-dir", "o", "", "导出文件目录（覆盖 output.dir）")
}

type pdfFlags struct {
	Data     string
	DataJSON string
	Filename string
	Debug    string
	Width    float64
}

func (f *pdfFlags) bind(fs *pflag.FlagSet) {
	fs.StringVar(&f.Data, "data", "", "绑定到模板的 JSON 数据文件")
	fs.StringVar(&f.DataJSON, "data-json", "", "绑定到模板的 JSON 数据（内联）")
	fs.StringVar(&f.Filename, "name", "", "输出文件名（默认取模板 meta.filename）")
	fs.StringVar(&f.Debug, "debug", "", "截取树调试 JSON 输出路径")
	fs.Float64Var(&f.Width, "width", 0, "覆盖模板声明的截取宽度（px）")
}

// app 持有一次命令执行所需的配置与日志。
type app struct {
	cfg config.Config
	log *logger.Logger
}

func main() {
	var (
		g globalFlags
		a app
	)
	root := &cobra.Command{
		Use:           "folio",
		Short:         "Export back-office reports as PDF, XLSX or printable documents",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			loaded, err := newApp(g)
			if err != nil {
				return err
			}
			a = *loaded
			return nil
		},
	}
	g.bind(root.PersistentFlags())
	root.AddCommand(pdfCommand(&a), xlsxCommand(&a), printCommand(&a), serveCommand(&a))

	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "folio: %v\n", err)
		os.Exit(1)
	}
}

func newApp(g globalFlags) (*app, error) {
	cfg, err := config.Load(g.Config)
	if err != nil {
		return nil, err
	}
	if g.LogLevel != "" {
		cfg.Log.Level = g.LogLevel
	}
	if g.OutDir != "" {
		cfg.Output.Dir = g.OutDir
	}
	log, err := logger.New(cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("初始化日志失败: %w", err)
	}
	return &app{cfg: cfg, log: log}, nil
}

func pdfCommand(a *app) *cobra.Command {
	var f pdfFlags
	cmd := &cobra.Command{
		Use:   "pdf <template>",
		Short: "Capture a report template and save it as a paginated PDF",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readData(f.Data, f.DataJSON)
			if err != nil {
				return err
			}
			out, err := a.runPDF(cmd.Context(), args[0], data, f)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "已生成 PDF：%s（%d 页）\n", out.Location, out.Pages)
			return nil
		},
	}
	f.bind(cmd.Flags())
	return cmd
}

func xlsxCommand(a *app) *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "xlsx <sheets.json>",
		Short: "Serialize JSON sheets into an .xlsx workbook",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := a.runWorkbook(cmd.Context(), args[0], name)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "已生成工作簿：%s\n", out.Location)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "输出文件名（默认取输入文件名）")
	return cmd
}

func printCommand(a *app) *cobra.Command {
	var htmlOnly bool
	cmd := &cobra.Command{
		Use:   "print <model.json>",
		Short: "Render a branded print document and print it through headless Chrome",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := a.runPrint(cmd.Context(), args[0], htmlOnly)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "已生成打印文档：%s\n", out.Location)
			return nil
		},
	}
	cmd.Flags().BoolVar(&htmlOnly, "html", false, "只输出 HTML，不启动浏览器")
	return cmd
}

func serveCommand(a *app) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the export endpoints over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if addr != "" {
				a.cfg.Server.Addr = addr
			}
			return a.serve(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "监听地址（覆盖 server.addr）")
	return cmd
}

// exporter 组装导出管线：canvas 光栅化、目录落盘、Chrome 打印。
func (a *app) exporter(assetDir string, printer printdoc.Printer) (*export.Exporter, *canvasrenderer.Renderer, error) {
	ec, err := a.cfg.Export()
	if err != nil {
		return nil, nil, err
	}
	r := canvasrenderer.NewRendererWithOptions(canvasrenderer.Options{
		BaseDir: assetDir,
		Rules:   ec.Rules,
		Logger:  a.log,
	})
	if printer == nil {
		page, err := a.cfg.PageSize()
		if err != nil {
			return nil, nil, err
		}
		chrome := printdoc.NewChromePrinter(a.cfg.Chrome.Path, page)
		if a.cfg.Chrome.Timeout > 0 {
			chrome.Timeout = a.cfg.Chrome.Timeout
		}
		printer = chrome
	}
	e := export.New(ec, r,
		export.WithSink(export.DirSink{Dir: a.cfg.Output.Dir}),
		export.WithPrinter(printdoc.NewService(printer, a.cfg.Branding)),
		export.WithLogger(a.log),
	)
	return e, r, nil
}

func (a *app) runPDF(ctx context.Context, path string, data any, f pdfFlags) (*export.Outcome, error) {
	assetDir := a.cfg.Capture.AssetDir
	if assetDir == "" {
		assetDir = filepath.Dir(path)
	}
	e, r, err := a.exporter(assetDir, nil)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("无法打开模板文件 %s: %w", path, err)
	}
	defer file.Close()

	capture, err := layout.Compile(file, data, layout.BuildOptions{
		Typesetter:   r,
		Width:        f.Width,
		DefaultWidth: a.cfg.Capture.Width,
	})
	if err != nil {
		return nil, fmt.Errorf("布局计算失败: %w", err)
	}
	if f.Debug != "" {
		if err := writeDebug(capture, f.Debug); err != nil {
			return nil, err
		}
	}
	return e.PDF(ctx, export.PDFRequest{
		Target:   capture.Name,
		Root:     capture.Root,
		Filename: f.Filename,
		Meta:     capture.Meta,
		Page:     &capture.Page,
	})
}

func (a *app) runWorkbook(ctx context.Context, path, name string) (*export.Outcome, error) {
	e, _, err := a.exporter(a.cfg.Capture.AssetDir, printdoc.HTMLPrinter{})
	if err != nil {
		return nil, err
	}
	var sheets []workbook.Sheet
	if err := decodeFile(path, &sheets, true); err != nil {
		return nil, err
	}
	if name == "" {
		name = trimExt(filepath.Base(path))
	}
	return e.Workbook(ctx, export.WorkbookRequest{Target: path, Filename: name, Sheets: sheets})
}

func (a *app) runPrint(ctx context.Context, path string, htmlOnly bool) (*export.Outcome, error) {
	var printer printdoc.Printer
	if htmlOnly {
		printer = printdoc.HTMLPrinter{}
	}
	e, _, err := a.exporter(a.cfg.Capture.AssetDir, printer)
	if err != nil {
		return nil, err
	}
	var model printdoc.ReportTemplateModel
	if err := decodeFile(path, &model, false); err != nil {
		return nil, err
	}
	return e.Print(ctx, export.PrintRequest{Target: path, Model: model})
}

func (a *app) serve(ctx context.Context) error {
	e, r, err := a.exporter(a.cfg.Capture.AssetDir, nil)
	if err != nil {
		return err
	}
	s := server.New(server.Options{
		Exporter:   e,
		Typesetter: r,
		Width:      a.cfg.Capture.Width,
		MaxBody:    a.cfg.Server.MaxBody,
		Logger:     a.log,
	})
	srv := s.HTTPServer(a.cfg.Server.Addr, a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		a.log.Infow("starting", "addr", srv.Addr, "output_dir", a.cfg.Output.Dir)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	a.log.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	a.log.Info("server stopped")
	return nil
}

func readData(path, inline string) (any, error) {
	var data any
	switch {
	case inline != "":
		if err := json.Unmarshal([]byte(inline), &data); err != nil {
			return nil, fmt.Errorf("解析 data JSON 失败: %w", err)
		}
	case path != "":
		if err := decodeFile(path, &data, false); err != nil {
			return nil, err
		}
	}
	return data, nil
}

func decodeFile(path string, v any, numbers bool) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("无法打开 %s: %w", path, err)
	}
	defer file.Close()
	dec := json.NewDecoder(file)
	if numbers {
		dec.UseNumber()
	}
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("解析 %s 失败: %w", path, err)
	}
	return nil
}

func writeDebug(c *layout.Capture, debugPath string) error {
	if err := os.MkdirAll(filepath.Dir(debugPath), 0o755); err != nil {
		return fmt.Errorf("创建调试目录失败: %w", err)
	}
	if err := layout.WriteDebugJSON(c, debugPath); err != nil {
		return fmt.Errorf("输出调试 JSON 失败: %w", err)
	}
	return nil
}

func trimExt(name string) string {
	return name[:len(name)-len(filepath.Ext(name))]
}
