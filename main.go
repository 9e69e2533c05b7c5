package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/rs/zerolog"

	"github.com/quotefetch/quotes/quotes"
	"github.com/quotefetch/quotes/quotes/cache"
	"github.com/quotefetch/quotes/quotes/common"
	"github.com/quotefetch/quotes/quotes/config"
)

func main() {
	var (
		flagSymbol    = flag.String("symbol", "", "symbol to query e.g. sh600000, hk00700, usTSLA, fuRB0, BK0420")
		flagStartDate = flag.String("sdate", "", "start date e.g. 2024-01-02 (also YYYY/MM/DD, YYYYMMDD, YYYY.MM.DD, YYYY_MM_DD)")
		flagEndDate   = flag.String("edate", "", "end date, empty means up to today")
		flagFreq      = flag.String("freq", "day", "one of day|week|month|min")
		flagDays      = flag.Int("days", quotes.DefaultDays, "vendor fall-through bar count when the window is open")
		flagAdjust    = flag.String("fq", "qfq", "adjustment, one of qfq|hfq|raw")
		flagYears     = flag.Int("years", 0, "stitch the query window with years-1 earlier one-year windows (0 = plain query)")
		flagCache     = flag.String("cache", "", "cache backend, one of sqlite|jsonl|blob|sharded|memory (empty = env default)")
		flagCachePath = flag.String("cachePath", "", "cache path (empty = ~/.quotes default)")
		flagStatus    = flag.Bool("status", false, "print sharded cache status rows and exit")
		flagDebug     = flag.Bool("debug", false, "enable debug logging")
	)

	flag.Parse()

	cfg := config.FromEnv()
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	if *flagDebug {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)

	backendKind := cfg.CacheBackend
	if *flagCache != "" {
		backendKind = *flagCache
	}
	cachePath := cfg.CachePath
	if *flagCachePath != "" {
		cachePath = *flagCachePath
	}

	var c cache.Cache
	if cfg.CacheEnabled {
		if backendKind == "memory" {
			c = cache.NewMemoryCache(0, cfg.CacheTTL)
		} else {
			pc, err := cache.NewPersistentCache(cache.Kind(backendKind), cachePath, cfg.CacheTTL)
			if err != nil {
				exit(fmt.Sprintf("error opening cache: %v.", err), false)
			}
			c = pc
		}
	}

	q := quotes.New(
		quotes.WithConfig(cfg),
		quotes.WithCache(c),
		quotes.WithDebug(*flagDebug),
	)
	defer q.Close()

	if *flagStatus {
		printStatus(c)
		return
	}

	if *flagSymbol == "" {
		exit("Empty symbol.", true)
	}

	query := quotes.Query{
		StartDate: *flagStartDate,
		EndDate:   *flagEndDate,
		Freq:      *flagFreq,
		Days:      *flagDays,
		Adjust:    *flagAdjust,
	}

	var (
		symbol, name string
		series       common.Series
	)
	ctx := context.Background()
	if *flagYears > 0 {
		symbol, name, series, err = q.GetPriceLonger(ctx, *flagSymbol, *flagYears, query)
	} else {
		symbol, name, series, err = q.GetPrice(ctx, *flagSymbol, query)
	}
	if err != nil {
		exit(err.Error(), false)
	}

	fmt.Printf("%v\t%v\n", symbol, name)
	for _, candle := range series {
		bs, err := json.Marshal(candle)
		if err != nil {
			exit(fmt.Sprintf("error encoding candle: %v.", err), false)
		}
		fmt.Println(string(bs))
	}
}

func printStatus(c cache.Cache) {
	pc, ok := c.(*cache.PersistentCache)
	if !ok {
		exit("status reporting needs a persistent cache.", false)
	}
	sharded, ok := pc.Backend().(*cache.ShardedBackend)
	if !ok {
		exit("status reporting needs the sharded backend (-cache sharded).", false)
	}
	for _, row := range sharded.StatusRows(flag.Args()) {
		bs, _ := json.Marshal(row)
		fmt.Println(string(bs))
	}
}

func exit(s string, showUsage bool) {
	log.Println(s)
	if showUsage {
		flag.Usage()
		os.Exit(1)
	}
	os.Exit(0)
}
