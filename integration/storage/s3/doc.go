// Package s3 streams objects from Amazon S3 and S3-compatible services as
// response bodies.
//
// Register the adapter once and assign Object values as bodies:
//
//	client, err := s3.NewClient(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	registry := body.NewRegistry(body.WithAdapters(s3.Adapter(client, cfg.Bucket)))
//
//	// in a handler
//	return response.Body(s3.Object{Key: "exports/" + id + ".csv"},
//		response.WithBodyOptions(body.WithRegistry(registry)))
//
// Adapted objects are downloaded lazily on the first read, so an object that
// gets replaced before it is sent is never fetched. Use Open when a missing
// object must turn into a 404 before headers are written; errors carry a
// status through StatusCode.
//
// MinIO configuration:
//
//	cfg := s3.Config{
//		Bucket:         "my-bucket",
//		Region:         "us-east-1",
//		AccessKeyID:    "minioadmin",
//		SecretKey:      "minioadmin",
//		Endpoint:       "http://localhost:9000",
//		ForcePathStyle: true,
//	}
package s3
