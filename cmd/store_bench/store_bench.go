package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"time"

	"streamstate/pkg/commtypes"
	"streamstate/pkg/env_config"
	"streamstate/pkg/snapshot_store"
	"streamstate/pkg/stats"
	"streamstate/pkg/store"

	"github.com/Jeffail/gabs/v2"
	"github.com/rs/zerolog/log"
)

var (
	FLAGS_config   string
	FLAGS_duration int
)

type benchConfig struct {
	backend   string
	storeDir  string
	numKeys   uint64
	valueSize int
	cacheSize int
	rangeSpan uint64
}

func parseConfig(configFile string) (*benchConfig, error) {
	byteVal, err := os.ReadFile(configFile)
	if err != nil {
		return nil, err
	}
	jsonParsed, err := gabs.ParseJSON(byteVal)
	if err != nil {
		return nil, err
	}
	config := jsonParsed.ChildrenMap()
	bc := &benchConfig{
		backend:   config["Backend"].Data().(string),
		numKeys:   uint64(config["NumKeys"].Data().(float64)),
		valueSize: int(config["ValueSize"].Data().(float64)),
		rangeSpan: uint64(config["RangeSpan"].Data().(float64)),
	}
	if dir, ok := config["StoreDir"]; ok {
		bc.storeDir = dir.Data().(string)
	}
	if sz, ok := config["CacheSize"]; ok {
		bc.cacheSize = int(sz.Data().(float64))
	}
	return bc, nil
}

func buildStore(bc *benchConfig) (store.CoreKeyValueStoreG[uint64, []byte], error) {
	st, err := buildBackend(bc)
	if err != nil {
		return nil, err
	}
	if bc.cacheSize > 0 {
		return store.NewCachingKeyValueStoreG[uint64, []byte](st, bc.cacheSize)
	}
	return st, nil
}

func buildBackend(bc *benchConfig) (store.CoreKeyValueStoreG[uint64, []byte], error) {
	switch bc.backend {
	case "btree":
		return store.NewInMemoryBTreeKeyValueStoreG[uint64, []byte]("bench", store.IntegerLess[uint64]), nil
	case "skipmap":
		return store.NewInMemorySkipmapKeyValueStoreG[uint64, []byte]("bench", store.IntegerLess[uint64]), nil
	case "pebble":
		if bc.storeDir == "" {
			return nil, fmt.Errorf("pebble backend needs StoreDir")
		}
		return store.NewSerdeWrappedKeyValueStoreG[uint64, []byte](
			store.NewPebbleKeyValueStore("bench", bc.storeDir),
			commtypes.Uint64SerdeG{}, commtypes.BytesSerdeG{}), nil
	default:
		return nil, fmt.Errorf("unknown backend %s", bc.backend)
	}
}

func runBench(ctx context.Context, st store.CoreKeyValueStoreG[uint64, []byte], bc *benchConfig) error {
	value := make([]byte, bc.valueSize)
	rand.Read(value)

	putLat := stats.NewCounter("bench_put")
	getLat := stats.NewCounter("bench_get")
	reportTimer := stats.NewReportTimer(time.Duration(5) * time.Second)
	var puts, gets, scanned uint64

	duration := time.Duration(FLAGS_duration) * time.Second
	start := time.Now()
	for time.Since(start) < duration {
		k := rand.Uint64() % bc.numKeys
		if err := st.Put(ctx, k, value); err != nil {
			return err
		}
		puts += 1
		putLat.Tick(1)

		if _, _, err := st.Get(ctx, rand.Uint64()%bc.numKeys); err != nil {
			return err
		}
		gets += 1
		getLat.Tick(1)

		if puts%1024 == 0 {
			from := rand.Uint64() % bc.numKeys
			it, err := st.Range(ctx, from, from+bc.rangeSpan)
			if err != nil {
				return err
			}
			for it.HasNext() {
				if _, err := it.Next(); err != nil {
					it.Close()
					return err
				}
				scanned += 1
			}
			it.Close()
		}

		if reportTimer.Check() {
			elapsed := reportTimer.Mark()
			log.Info().
				Uint64("puts", puts).
				Uint64("gets", gets).
				Uint64("scanned", scanned).
				Dur("elapsed", elapsed).
				Msg("progress")
		}
	}
	if err := st.Flush(ctx); err != nil {
		return err
	}
	n, err := st.ApproximateNumEntries()
	if err != nil {
		return err
	}
	if env_config.CREATE_SNAPSHOT {
		rs := snapshot_store.NewRedisSnapshotStore(true)
		blob, err := snapshot_store.EncodeKVSnapshot[uint64, []byte](ctx, st,
			commtypes.Uint64SerdeG{}, commtypes.BytesSerdeG{})
		if err != nil {
			return err
		}
		if err := rs.StoreSnapshot(ctx, blob, st.Name(), puts); err != nil {
			return err
		}
		log.Info().Int("snapshot_bytes", len(blob)).Msg("snapshot stored")
	}
	putLat.Report()
	getLat.Report()
	log.Info().
		Uint64("entries", n).
		Float64("put_per_sec", float64(puts)/duration.Seconds()).
		Float64("get_per_sec", float64(gets)/duration.Seconds()).
		Msg("done")
	return nil
}

func main() {
	flag.StringVar(&FLAGS_config, "config", "bench_config.json", "")
	flag.IntVar(&FLAGS_duration, "duration", 60, "")
	flag.Parse()

	bc, err := parseConfig(FLAGS_config)
	if err != nil {
		log.Fatal().Err(err).Msg("parse config failed")
	}
	st, err := buildStore(bc)
	if err != nil {
		log.Fatal().Err(err).Msg("build store failed")
	}
	ctx := context.Background()
	if err := st.Init(ctx); err != nil {
		log.Fatal().Err(err).Msg("init store failed")
	}
	defer func() {
		if err := st.Close(); err != nil {
			log.Error().Err(err).Msg("close store failed")
		}
	}()
	if err := runBench(ctx, st, bc); err != nil {
		log.Fatal().Err(err).Msg("bench failed")
	}
}
