// Command kvindexd serves a read-only debug/admin HTTP surface over one
// on-disk index: health, summary stats and single-key lookups. It never
// writes to the index; it exists purely to let an operator poke at a
// running index without a client library.
package main

import (
	"encoding/hex"
	"errors"
	"flag"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/haldi/kvindex/cache"
	"github.com/haldi/kvindex/engine"
	"github.com/haldi/kvindex/entry"
	"github.com/haldi/kvindex/fixedkey"
	"github.com/haldi/kvindex/metrics"
)

func main() {
	root := flag.String("root", "", "index root directory")
	addr := flag.String("addr", ":8080", "HTTP listen address")
	keySize := flag.Int("key-size", 16, "fixed key size in bytes")
	valueSize := flag.Int("value-size", 64, "fixed value size in bytes")
	flag.Parse()

	if *root == "" {
		log.Fatal("kvindexd: -root is required")
	}

	codec := &entry.Codec[fixedkey.Key, fixedkey.Value]{
		Keys:   fixedkey.NewKeyCodec(*keySize),
		Values: fixedkey.NewValueCodec(*valueSize),
	}

	reg := prometheus.NewRegistry()
	m := metrics.New(reg, *root)

	c := cache.New[fixedkey.Key, fixedkey.Value]()
	eng, err := c.Open(*root, codec, 64, engine.WithReadOnly(), engine.WithMetrics(m))
	if err != nil {
		log.Fatalf("kvindexd: open %s: %v", *root, err)
	}
	defer c.Release(*root, true)

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	registerRoutes(r, eng)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	log.Printf("kvindexd: serving %s on %s", *root, *addr)
	if err := r.Run(*addr); err != nil {
		log.Fatalf("kvindexd: serve: %v", err)
	}
}

func registerRoutes(r *gin.Engine, eng *engine.Engine[fixedkey.Key, fixedkey.Value]) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":     "ok",
			"generation": eng.Generation(),
		})
	})

	r.GET("/stats", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"generation": eng.Generation(),
			"root":       eng.Root(),
			"read_only":  eng.ReadOnly(),
		})
	})

	r.GET("/find", func(c *gin.Context) {
		hexKey := c.Query("key")
		if hexKey == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "key query param is required (hex-encoded)"})
			return
		}
		raw, err := hex.DecodeString(hexKey)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "key is not valid hex"})
			return
		}

		v, err := eng.Find(c.Request.Context(), fixedkey.Key(raw))
		if err != nil {
			if errors.Is(err, engine.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"key":   hexKey,
			"value": hex.EncodeToString(v),
		})
	})
}
