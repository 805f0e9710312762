package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/zeromicro/go-zero/core/conf"
	"github.com/zeromicro/go-zero/core/logx"
	"github.com/zeromicro/go-zero/core/proc"
	"github.com/zeromicro/go-zero/core/threading"
	"github.com/zeromicro/go-zero/rest"
	"github.com/zeromicro/go-zero/rest/httpx"

	"github.com/unclewu3242592726/aitutor/internal/config"
	"github.com/unclewu3242592726/aitutor/internal/handler"
	"github.com/unclewu3242592726/aitutor/internal/svc"
	"github.com/unclewu3242592726/aitutor/pkg/xerr"
)

var configFile = flag.String("f", "etc/tutor-api.yaml", "the config file")

func main() {
	flag.Parse()

	var c config.Config
	conf.MustLoad(*configFile, &c, conf.UseEnv())

	server := rest.MustNewServer(c.RestConf, rest.WithCors())
	defer server.Stop()

	ctx := svc.NewServiceContext(c)
	handler.RegisterHandlers(server, ctx)

	// 统一错误响应 {code, message}
	httpx.SetErrorHandlerCtx(func(_ context.Context, err error) (int, any) {
		return xerr.Status(err)
	})

	probeCtx, cancel := context.WithCancel(context.Background())
	threading.GoSafe(func() {
		ctx.Probe.Run(probeCtx, c.Probe.Interval)
	})

	proc.AddShutdownListener(func() {
		cancel()
		n := ctx.Hub.CloseAll()
		logx.Infof("已关闭 %d 个中继连接", n)
		ctx.Close()
	})

	fmt.Printf("Starting server at %s:%d...\n", c.Host, c.Port)
	server.Start()
}
