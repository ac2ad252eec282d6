package cache

import (
	"context"
	"strconv"
	"testing"
	"time"
)

// countriesPayload approximates a cached country directory body.
var countriesPayload = make([]byte, 64<<10)

func BenchmarkInMemoryCache_Get_Hit(b *testing.B) {
	c := NewInMemoryCache()
	ctx := context.Background()
	_ = c.Set(ctx, "restcountries:all", countriesPayload, 0)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _, _ = c.Get(ctx, "restcountries:all")
	}
}

func BenchmarkInMemoryCache_Get_Miss(b *testing.B) {
	c := NewInMemoryCache()
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _, _ = c.Get(ctx, "nonexistent")
	}
}

func BenchmarkInMemoryCache_Set(b *testing.B) {
	c := NewInMemoryCache()
	ctx := context.Background()
	body := []byte(`{"main":{"temp_min":10,"temp_max":15,"humidity":60,"pressure":1012},"wind":{"speed":3.5}}`)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = c.Set(ctx, "openweather:"+strconv.Itoa(i%256), body, 5*time.Minute)
	}
}

func BenchmarkInMemoryCache_Concurrent(b *testing.B) {
	c := NewInMemoryCache()
	ctx := context.Background()
	_ = c.Set(ctx, "restcountries:all", countriesPayload, 0)

	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			_, _, _ = c.Get(ctx, "restcountries:all")
		}
	})
}
