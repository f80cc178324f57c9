package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/creata-games/airdrop-engine/internal/handler"
	"github.com/creata-games/airdrop-engine/internal/rankapi"
	"github.com/creata-games/airdrop-engine/internal/repository"
	"github.com/creata-games/airdrop-engine/internal/server"
	"github.com/creata-games/airdrop-engine/internal/services"
	"github.com/creata-games/airdrop-engine/internal/services/policy"
	"github.com/creata-games/airdrop-engine/internal/utils"
	"github.com/creata-games/airdrop-engine/internal/utils/lock"
)

func main() {
	var (
		MysqlEndpoint string
		RpcEndpoint   string
		KeyPath       string
		RedisEndpoint string
		RankEndpoint  string
		PolicyPath    string
		ListenAddr    string

		BatchSize       int
		Interval        time.Duration
		ConfirmWait     time.Duration
		StaleAfter      time.Duration
		ReservedBalance float64
		AutoExecute     bool
	)

	flag.StringVar(&MysqlEndpoint, "mysql", "root:passwd@tcp(127.0.0.1:3306)/airdrop?parseTime=true", "mysql endpoint")
	flag.StringVar(&RpcEndpoint, "rpc", "https://cvm.node.creatachain.com", "chain rpc endpoint")
	flag.StringVar(&KeyPath, "key", "key.txt", "funding wallet private key path")
	flag.StringVar(&RedisEndpoint, "redis", "", "redis endpoint for the shared batch lock (empty = in-process lock)")
	flag.StringVar(&RankEndpoint, "ranking", "", "ranking endpoint of the game backend")
	flag.StringVar(&PolicyPath, "rewards", "", "reward policy json path (empty = built-in defaults)")
	flag.StringVar(&ListenAddr, "listen", ":8080", "admin api listen address")

	flag.IntVar(&BatchSize, "batch", 20, "entries per scheduled batch")
	flag.DurationVar(&Interval, "interval", time.Minute, "scheduled batch period")
	flag.DurationVar(&ConfirmWait, "confirm-wait", time.Second*90, "per-transfer receipt wait")
	flag.DurationVar(&StaleAfter, "stale-after", time.Minute*30, "give up on an unconfirmed transfer after this long")
	flag.Float64Var(&ReservedBalance, "reserved", 1, "balance kept in the funding wallet for gas")
	flag.BoolVar(&AutoExecute, "auto", true, "run batches on a schedule (false = admin-triggered only)")
	flag.Parse()

	rewardPolicy := policy.Default()
	if PolicyPath != "" {
		var err error
		if rewardPolicy, err = policy.Load(PolicyPath); err != nil {
			logrus.Fatalf("unable to load reward policy: %s", err)
		}
	}

	db, err := repository.Connect(MysqlEndpoint)
	if err != nil {
		logrus.Fatalf("unable to connect to mysql: %s", err)
	}
	defer db.Close()

	basectx, cancel := context.WithCancel(context.Background())
	go func() {
		stop := make(chan os.Signal, 1)
		signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
		for range stop {
			cancel()
		}
	}()

	rpc, err := ethclient.Dial(RpcEndpoint)
	if err != nil {
		logrus.Fatalf("unable to connect to chain rpc: %s", err)
	}
	defer rpc.Close()

	chainId, err := rpc.ChainID(context.Background())
	if err != nil {
		logrus.Fatalf("unable to get chain id: %s", err)
	}
	logrus.Infof("Connected to chain %d", chainId)

	prvkey, wallet, err := utils.ReadPrvkey(KeyPath)
	if err != nil {
		logrus.Fatalf("unable to read private key: %s", err)
	}
	logrus.Infof("Funding wallet address is %s", wallet)

	var locker lock.Locker = lock.NewLocal()
	if RedisEndpoint != "" {
		locker = lock.NewRedis(redis.NewClient(&redis.Options{Addr: RedisEndpoint}))
	}

	var selector services.RankingSelector
	if RankEndpoint != "" {
		selector = rankapi.New(RankEndpoint)
	}

	engine := &services.Engine{
		Store:       repository.NewAirdrops(db),
		Gateway:     services.NewEthGateway(rpc, prvkey, wallet, chainId),
		Policy:      rewardPolicy,
		Locker:      locker,
		Selector:    selector,
		Reserved:    decimal.NewFromFloat(ReservedBalance),
		ConfirmWait: ConfirmWait,
		StaleAfter:  StaleAfter,
	}

	eg, egctx := errgroup.WithContext(basectx)

	// Scheduled execution
	eg.Go(func() error {
		if !AutoExecute {
			return nil
		}

		logrus.Info("starting scheduled batch execution")
		timer := time.NewTimer(Interval)
		for {
			select {
			case <-egctx.Done():
				return nil
			case <-timer.C:
				result, err := engine.ExecuteBatch(egctx, BatchSize, false)
				switch {
				case err == nil:
					if result.Processed > 0 {
						logrus.Infof("Batch done: processed %d success %d failed %d confirming %d",
							result.Processed, result.Succeeded, result.Failed, result.Confirming)
					}
				case errors.Is(err, services.ErrBatchRunning):
					logrus.Info("Batch skipped: previous run still in progress")
				default:
					logrus.Errorf("scheduled batch: %s", err)
				}
				timer.Reset(Interval)
			}
		}
	})

	// Receipt reconciliation. Runs even with -auto=false: admin-triggered
	// batches still leave unconfirmed entries behind, and only this sweep
	// settles them.
	eg.Go(func() error {
		timer := time.NewTimer(Interval)
		for {
			select {
			case <-egctx.Done():
				return nil
			case <-timer.C:
				if err := engine.Reconcile(egctx); err != nil {
					logrus.Errorf("reconcile: %s", err)
				}
				timer.Reset(Interval)
			}
		}
	})

	// Admin API
	srv := &http.Server{
		Addr:    ListenAddr,
		Handler: server.NewRouter(handler.NewAirdropHandler(engine)),
	}
	eg.Go(func() error {
		logrus.Infof("admin api listening at %s", ListenAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	eg.Go(func() error {
		<-egctx.Done()
		shutdownctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
		defer cancel()
		return srv.Shutdown(shutdownctx)
	})

	if err := eg.Wait(); err != nil {
		logrus.Fatal(err)
	}
}
