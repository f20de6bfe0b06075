package main

import (
	"context"
	"flag"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/valyala/fasthttp"

	"sairedis/client"
	"sairedis/sai"
	"sairedis/store"
	"sairedis/transport"
)

// BenchmarkQueue pushes and pops raw messages on per-worker queues.
func BenchmarkQueue(u string, parallel, nPerThread, size int) {
	c := fasthttp.Client{
		MaxConnsPerHost: 50000,
	}
	body := make([]byte, size)
	for i := range body {
		body[i] = 'x'
	}
	var wg sync.WaitGroup
	for i := 0; i < parallel; i++ {
		uri := fmt.Sprintf("%s/q/bench-%d", u, i)
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < nPerThread; j++ {
				for _, method := range []string{"POST", "DELETE"} {
					req := fasthttp.AcquireRequest()
					req.Header.SetMethod(method)
					req.SetRequestURI(uri)
					if method == "POST" {
						req.SetBody(body)
					}
					resp := fasthttp.AcquireResponse()
					err := c.Do(req, resp)
					if err != nil {
						panic(err)
					}
					if resp.StatusCode() != 200 {
						panic(fmt.Sprintf("NON 200 status code: %v %v ", resp.StatusCode(), string(resp.Body())))
					}
					fasthttp.ReleaseRequest(req)
					fasthttp.ReleaseResponse(resp)
				}
			}
		}()
	}
	wg.Wait()
}

// BenchmarkVLANs creates n VLANs with one member each and removes them
// again, returning the latency of every create.
func BenchmarkVLANs(u string, n int) []time.Duration {
	h := transport.NewHTTP(u)
	c := client.New(client.Options{
		Commands:  h.Queue(store.CommandQueue),
		Responses: h.Queue(store.ResponseQueue),
	})
	ctx := context.Background()
	if err := c.Initialize(ctx); err != nil {
		panic(err)
	}
	sw, err := c.Create(ctx, sai.ObjectTypeSwitch, []sai.Attribute{{ID: sai.SwitchAttrInitSwitch, Value: sai.Value{Bool: true}}})
	if err != nil {
		panic(err)
	}
	res, err := c.Get(ctx, sai.KeyOf(sw), []sai.Attribute{{ID: sai.SwitchAttrPortList, Value: sai.Value{Objects: sai.List[sai.ObjectID]{Count: 256}}}})
	if err != nil {
		panic(err)
	}
	ports := res[0].Value.Objects.Items
	if len(ports) == 0 {
		panic("switch has no ports")
	}

	tt := make([]time.Duration, 0, n)
	var created []sai.ObjectID
	for i := 0; i < n; i++ {
		start := time.Now()
		vlan, err := c.Create(ctx, sai.ObjectTypeVLAN, []sai.Attribute{{ID: sai.VLANAttrVLANID, Value: sai.Value{Uint: uint64(2 + i%4000)}}})
		if err != nil {
			panic(err)
		}
		member, err := c.Create(ctx, sai.ObjectTypeVLANMember, []sai.Attribute{
			{ID: sai.VLANMemberAttrVLANID, Value: sai.Value{OID: vlan}},
			{ID: sai.VLANMemberAttrPortID, Value: sai.Value{OID: ports[i%len(ports)]}},
		})
		if err != nil {
			panic(err)
		}
		tt = append(tt, time.Since(start))
		created = append(created, member, vlan)
		if len(created) >= 2*1000 {
			removeAll(ctx, c, created)
			created = created[:0]
		}
	}
	removeAll(ctx, c, created)
	return tt
}

func removeAll(ctx context.Context, c *client.Client, ids []sai.ObjectID) {
	for _, id := range ids {
		if err := c.Remove(ctx, sai.KeyOf(id)); err != nil {
			panic(err)
		}
	}
}

func main() {
	addr := flag.String("addr", "http://localhost:6380", "daemon address")
	vlans := flag.Int("vlans", 10000, "vlans to create in the client benchmark")
	flag.Parse()

	parallel := 100
	perThread := 100
	total := float64(parallel * perThread)
	for _, size := range []int{64, 1024, 10240} {
		start := time.Now()
		BenchmarkQueue(*addr, parallel, perThread, size)
		log.Printf("%d byte push+pop on %d queues: %.1fk req/sec %.1f MB/sec", size, parallel,
			2*total/time.Since(start).Seconds()/1000, total*float64(size)/1000000/time.Since(start).Seconds())
	}

	start := time.Now()
	tt := BenchmarkVLANs(*addr, *vlans)
	var sum, max time.Duration
	min := time.Hour
	for _, t := range tt {
		sum += t
		if max < t {
			max = t
		}
		if min > t {
			min = t
		}
	}
	log.Printf("vlan+member create: min %d us, avg %.1f us, max %d us, total %d ms",
		min.Microseconds(), float64(sum.Microseconds())/float64(len(tt)), max.Microseconds(), time.Since(start).Milliseconds())
}
