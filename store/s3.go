package store

import (
	"fmt"
	"io"
	"log"
	"net/http"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	raven "github.com/getsentry/raven-go"
)

// A S3 store keeps volumes in an AWS S3 bucket.
// Do not change Bucket or Prefix concurrently with calls using the structure.
type S3 struct {
	svc      *s3.S3
	uploader *s3manager.Uploader
	Bucket   string
	Prefix   string
}

var (
	_ Store = &S3{}
)

// NewS3 creates a new S3 store. It will use the given bucket and will prepend
// prefix to all keys. This is to allow for a bucket to be used for more than
// one store. For example if prefix were "archives/" then a Create("a.001.bpk")
// would make the key "archives/a.001.bpk" in the bucket. The authorization
// method and credentials in the session are used for all accesses.
func NewS3(bucket, prefix string, awsSession *session.Session) *S3 {
	svc := s3.New(awsSession)
	return &S3{
		Bucket:   bucket,
		Prefix:   prefix,
		svc:      svc,
		uploader: s3manager.NewUploaderWithClient(svc),
	}
}

// ListPrefix returns the keys in this store that have the given prefix.
// The argument prefix is added to the store's Prefix.
func (s *S3) ListPrefix(prefix string) ([]string, error) {
	var result []string
	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(s.Bucket),
		Prefix: aws.String(s.Prefix + prefix),
	}
	err := s.svc.ListObjectsV2Pages(input,
		func(page *s3.ListObjectsV2Output, lastpage bool) bool {
			for _, item := range page.Contents {
				result = append(result, strings.TrimPrefix(*item.Key, s.Prefix))
			}
			return !lastpage
		})
	if err != nil {
		log.Println("S3 ListPrefix:", s.Prefix, prefix, err)
		raven.CaptureError(err, map[string]string{"Bucket": s.Bucket, "Prefix": s.Prefix, "Pattern": prefix})
	}
	sort.Strings(result)
	return result, err
}

// Open returns a ReadAtCloser for the content of key. Every ReadAt is a
// ranged GET, so callers should read in large pieces.
func (s *S3) Open(key string) (ReadAtCloser, int64, error) {
	size, err := s.stat(key)
	if err != nil {
		return nil, 0, err
	}
	return &s3ReadAtCloser{
		svc:    s.svc,
		bucket: s.Bucket,
		key:    s.Prefix + key,
		size:   size,
	}, size, nil
}

// Create returns a WriteCloser to upload content to key. The data is
// streamed to S3 by an uploader, which switches to a multipart upload once
// the content grows past one part. The object appears when Close returns
// without an error.
func (s *S3) Create(key string) (io.WriteCloser, error) {
	_, err := s.stat(key)
	if err == nil {
		return nil, ErrKeyExists
	} else if err != ErrNotExist {
		return nil, err
	}
	pr, pw := io.Pipe()
	wc := &s3WriteCloser{
		pw:     pw,
		result: make(chan error, 1),
		bucket: s.Bucket,
		key:    s.Prefix + key,
	}
	go func() {
		_, err := s.uploader.Upload(&s3manager.UploadInput{
			Bucket: aws.String(wc.bucket),
			Key:    aws.String(wc.key),
			Body:   pr,
		})
		// unblock any writer if the upload gave up early
		pr.CloseWithError(err)
		wc.result <- err
	}()
	return wc, nil
}

// Delete will remove the given key from the store. The store's Prefix is
// prepended first. It is not an error to delete something that doesn't exist.
func (s *S3) Delete(key string) error {
	_, err := s.svc.DeleteObject(&s3.DeleteObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(s.Prefix + key),
	})
	if err != nil {
		log.Println("S3 Delete:", s.Prefix, key, err)
		raven.CaptureError(err, map[string]string{"Bucket": s.Bucket, "Prefix": s.Prefix, "Key": key})
	}
	return err
}

// stat returns the size of key, or ErrNotExist.
func (s *S3) stat(key string) (int64, error) {
	info, err := s.svc.HeadObject(&s3.HeadObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(s.Prefix + key),
	})
	if e, ok := err.(awserr.RequestFailure); ok && e.StatusCode() == http.StatusNotFound {
		return 0, ErrNotExist
	} else if err != nil {
		return 0, err
	}
	return aws.Int64Value(info.ContentLength), nil
}

type s3ReadAtCloser struct {
	svc    *s3.S3
	bucket string
	key    string
	size   int64
}

// ReadAt implements the io.ReadAt interface.
func (rac *s3ReadAtCloser) ReadAt(p []byte, offset int64) (int, error) {
	if offset >= rac.size {
		return 0, io.EOF
	}
	end := offset + int64(len(p))
	if end > rac.size {
		end = rac.size
	}
	if end == offset {
		return 0, nil
	}
	output, err := rac.svc.GetObject(&s3.GetObjectInput{
		Bucket: aws.String(rac.bucket),
		Key:    aws.String(rac.key),
		Range:  aws.String(fmt.Sprintf("bytes=%d-%d", offset, end-1)),
	})
	if err != nil {
		log.Println("S3 ReadAt:", rac.key, offset, err)
		return 0, err
	}
	defer output.Body.Close()
	n, err := io.ReadFull(output.Body, p[:end-offset])
	if err == nil && end-offset < int64(len(p)) {
		err = io.EOF
	}
	return n, err
}

func (rac *s3ReadAtCloser) Close() error {
	return nil
}

// s3WriteCloser feeds an upload running in its own goroutine.
type s3WriteCloser struct {
	pw     *io.PipeWriter
	result chan error
	bucket string
	key    string
}

func (wc *s3WriteCloser) Write(p []byte) (int, error) {
	return wc.pw.Write(p)
}

// Close finishes the upload and waits for it. A failed multipart upload is
// aborted by the uploader, so nothing is left behind in the bucket.
func (wc *s3WriteCloser) Close() error {
	wc.pw.Close()
	err := <-wc.result
	if err != nil {
		log.Println("S3 upload:", wc.key, err)
		raven.CaptureError(err, map[string]string{"Bucket": wc.bucket, "Key": wc.key})
	}
	return err
}
