// Package searchfront embeds the searchfront view engine in a Go program.
//
// A view runs staggered refinement against the upstream search API: one
// narrow query and up to three broad ones, publishing a result set only
// when its total does not shrink.
//
//	client, _ := searchfront.New(ctx,
//	    searchfront.WithBackend("http://pansou:8888"),
//	    searchfront.WithRedis("localhost:6379", ""),
//	)
//	defer client.Close()
//
//	view, _ := client.OpenView(ctx)
//	_ = view.Search(ctx, "movie", searchfront.WithCloudTypes("aliyun"))
//	updates, _ := view.Watch(ctx)
//	for snap := range updates {
//	    fmt.Println(snap.Phase, snap.Total)
//	}
package searchfront
