/*
Copyright © 2026 the gridextract authors.
This file is part of gridextract.

gridextract is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

gridextract is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with gridextract.  If not, see <http://www.gnu.org/licenses/>.
*/


package gridutil

import (
	"context"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func TestMaybeDownloadLocal(t *testing.T) {
	ctx := context.Background()
	if k, err := maybeDownload(ctx, "/dev/null"); err != nil || k != "/dev/null" {
		t.Error("Expected /dev/null, got ", k, err)
	}
	if k, err := maybeDownload(ctx, "/blah/test/"); err != nil || k != "/blah/test/" {
		t.Error("Expected /blah/test/, got ", k, err)
	}
}

func TestMaybeDownloadRemote(t *testing.T) {
	dir := t.TempDir()
	if err := ioutil.WriteFile(filepath.Join(dir, "stations.csv"), []byte("id,lon,lat\n"), 0644); err != nil {
		t.Fatal(err)
	}
	srv := httptest.NewServer(http.FileServer(http.Dir(dir)))
	defer srv.Close()
	k, err := maybeDownload(context.Background(), srv.URL+"/stations.csv")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasSuffix(k, "stations.csv") || k == filepath.Join(dir, "stations.csv") {
		t.Error("Expected tempDir/stations.csv, got ", k)
	}
	b, err := ioutil.ReadFile(k)
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != "id,lon,lat\n" {
		t.Errorf("wrong file contents %q", b)
	}
}

func TestMaybeDownloadRemoteShapefile(t *testing.T) {
	dir := t.TempDir()
	for _, ext := range []string{".shp", ".dbf", ".shx"} {
		if err := ioutil.WriteFile(filepath.Join(dir, "stations"+ext), []byte(ext), 0644); err != nil {
			t.Fatal(err)
		}
	}
	srv := httptest.NewServer(http.FileServer(http.Dir(dir)))
	defer srv.Close()
	k, err := maybeDownload(context.Background(), srv.URL+"/stations.shp")
	if err != nil {
		t.Fatal(err)
	}
	for _, ext := range []string{".dbf", ".shx"} {
		if _, err := os.Stat(strings.TrimSuffix(k, ".shp") + ext); err != nil {
			t.Error(err)
		}
	}
}

func TestBlob(t *testing.T) {
	// fileblob buckets are directories relative to the working directory.
	bucket, err := ioutil.TempDir(".", "blobtest")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(bucket)
	ctx := context.Background()

	src := filepath.Join(t.TempDir(), "out.csv")
	if err := ioutil.WriteFile(src, []byte("point_id,layer,time,value\n"), 0644); err != nil {
		t.Fatal(err)
	}

	blobPath := "file://" + filepath.Base(bucket) + "/out.csv"
	if !IsBlob(blobPath) {
		t.Fatalf("%s should be a blob", blobPath)
	}
	if _, err := checkOutputFile(blobPath); err != nil {
		t.Fatal(err)
	}

	t.Run("upload", func(t *testing.T) {
		u := new(uploader)
		local := u.maybeUpload(blobPath)
		if local == blobPath {
			t.Fatal("blob output should be written to a local file first")
		}
		b, err := ioutil.ReadFile(src)
		if err != nil {
			t.Fatal(err)
		}
		if err := ioutil.WriteFile(local, b, 0644); err != nil {
			t.Fatal(err)
		}
		if err := u.uploadOutput(ctx); err != nil {
			t.Fatal(err)
		}
	})

	t.Run("download", func(t *testing.T) {
		k, err := maybeDownload(ctx, blobPath)
		if err != nil {
			t.Fatal(err)
		}
		b, err := ioutil.ReadFile(k)
		if err != nil {
			t.Fatal(err)
		}
		if string(b) != "point_id,layer,time,value\n" {
			t.Errorf("wrong file contents %q", b)
		}
	})

	t.Run("missing", func(t *testing.T) {
		if _, err := maybeDownload(ctx, "file://"+filepath.Base(bucket)+"/missing.csv"); err == nil {
			t.Error("expected an error")
		}
	})
}

func TestOpenBucketInvalid(t *testing.T) {
	if _, err := OpenBucket(context.Background(), "ftp://bucket"); err == nil {
		t.Error("expected an error")
	}
}

func TestExpandShp(t *testing.T) {
	have := expandShp("dir/stations.shp")
	want := []string{"dir/stations.shp", "dir/stations.dbf", "dir/stations.shx", "dir/stations.prj"}
	if !reflect.DeepEqual(have, want) {
		t.Errorf("%v != %v", have, want)
	}
	if have := expandShp("t2m.nc"); !reflect.DeepEqual(have, []string{"t2m.nc"}) {
		t.Errorf("%v != [t2m.nc]", have)
	}
}
