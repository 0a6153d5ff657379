package parser

import (
	"testing"

	"go.uber.org/zap"
)

const sampleJSONLog = `{"timestamp":"2024-01-15T10:30:45Z","level":"info","ip_address":"192.168.1.100","method":"GET","path":"/api/users","status_code":200,"response_time":45.3,"user_agent":"Mozilla/5.0","message":"Request processed"}`

const sampleMalformedLog = `{"timestamp":"2024-01-15T10:30:45Z","level":"info"`

// BenchmarkJSONParser measures JSON log parsing speed
func BenchmarkJSONParser(b *testing.B) {
	parser := &JSONParser{}
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		_, err := parser.Parse(sampleJSONLog)
		if err != nil {
			b.Fatalf("Parse error: %v", err)
		}
	}
}

// BenchmarkJSONParserAllocs measures allocations in JSON parsing
func BenchmarkJSONParserAllocs(b *testing.B) {
	parser := &JSONParser{}
	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		_, err := parser.Parse(sampleJSONLog)
		if err != nil {
			b.Fatalf("Parse error: %v", err)
		}
	}
}

// BenchmarkJSONParserMalformed measures the cost of the parse-error path,
// which now also increments metrics.ParseErrorsTotal on every call.
func BenchmarkJSONParserMalformed(b *testing.B) {
	parser := &JSONParser{}
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		_, _ = parser.Parse(sampleMalformedLog)
	}
}

// BenchmarkParserFactoryOverhead measures overhead of parser creation,
// including the unsupported-format warning path.
func BenchmarkParserFactoryOverhead(b *testing.B) {
	log := zap.NewNop()

	b.Run("JSON", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			_ = NewParser("json", log)
		}
	})

	b.Run("UnsupportedFallback", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			_ = NewParser("apache", log)
		}
	})
}

// BenchmarkBatchParsing simulates batch processing multiple log lines
func BenchmarkBatchParsing(b *testing.B) {
	parser := &JSONParser{}
	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		for j := 0; j < 100; j++ {
			_, _ = parser.Parse(sampleJSONLog)
		}
	}
}

// BenchmarkParallelParsing tests parser performance under concurrent load
func BenchmarkParallelParsing(b *testing.B) {
	parser := &JSONParser{}

	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			_, _ = parser.Parse(sampleJSONLog)
		}
	})
}
