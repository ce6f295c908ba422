// Package storage reads and writes résumé objects.
//
// Résumés live in one bucket, one folder per candidate:
//
//	<employee id>/<file name>
//
// S3Store talks to AWS S3 with session credentials issued by the packet
// server. MemoryStore implements the same Store interface in memory.
//
//	factory := storage.S3Factory(storage.S3Options{Region: "us-west-1"})
//	store, err := factory(ctx, storage.Credentials{AccessKeyID: id, SecretAccessKey: key})
//	objs, err := store.List(ctx, "beachbev-resumes", storage.FolderPrefix("42"))
package storage
