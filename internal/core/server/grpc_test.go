package server

import (
	"context"
	"net"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/solatis/cibrule/internal/core/api"
	"github.com/solatis/cibrule/internal/core/auth"
	"github.com/solatis/cibrule/internal/core/config"
	"github.com/solatis/cibrule/internal/core/logging"
	"github.com/solatis/cibrule/internal/core/metrics"
)

const testCIB = `<cib><configuration><constraints><rsc_location id="loc" rsc="A"/></constraints></configuration></cib>`

// startServer serves on an in-memory listener and returns a connected client.
func startServer(t *testing.T, authenticator *auth.Authenticator) *grpc.ClientConn {
	t.Helper()

	service, err := api.NewRuleService(logging.Discard(), metrics.New(), nil)
	if err != nil {
		t.Fatal(err)
	}
	cfg := config.DefaultConfig().Service
	srv, err := NewGRPCServer(cfg, service, authenticator, logging.Discard())
	if err != nil {
		t.Fatalf("NewGRPCServer failed: %v", err)
	}

	lis := bufconn.Listen(1 << 20)
	go srv.Serve(lis)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	})

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func compileRequest(t *testing.T) *structpb.Struct {
	t.Helper()
	req, err := structpb.NewStruct(map[string]any{
		"cib":           testCIB,
		"constraint_id": "loc",
		"expression":    "#uname eq node1",
	})
	if err != nil {
		t.Fatal(err)
	}
	return req
}

func TestNewGRPCServer_Validation(t *testing.T) {
	cfg := config.DefaultConfig().Service
	if _, err := NewGRPCServer(cfg, nil, nil, logging.Discard()); err == nil {
		t.Error("expected error for nil service")
	}
	service, _ := api.NewRuleService(logging.Discard(), metrics.New(), nil)
	if _, err := NewGRPCServer(cfg, service, nil, nil); err == nil {
		t.Error("expected error for nil logger")
	}
}

func TestRuleServiceOverGRPC(t *testing.T) {
	conn := startServer(t, nil)
	client := api.NewRuleServiceClient(conn)
	ctx := context.Background()

	resp, err := client.Compile(ctx, compileRequest(t))
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	if got := resp.GetFields()["rule_id"].GetStringValue(); got != "loc-rule" {
		t.Errorf("rule_id = %q, want loc-rule", got)
	}

	exportReq, _ := structpb.NewStruct(map[string]any{
		"cib":           resp.GetFields()["cib"].GetStringValue(),
		"constraint_id": "loc",
	})
	exported, err := client.Export(ctx, exportReq)
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	rules := exported.GetFields()["rules"].GetListValue().GetValues()
	if len(rules) != 1 || rules[0].GetStringValue() != "#uname eq node1" {
		t.Errorf("exported rules = %v", rules)
	}

	health, err := grpc_health_v1.NewHealthClient(conn).Check(ctx, &grpc_health_v1.HealthCheckRequest{Service: api.ServiceName})
	if err != nil {
		t.Fatalf("health check failed: %v", err)
	}
	if health.GetStatus() != grpc_health_v1.HealthCheckResponse_SERVING {
		t.Errorf("health status = %v", health.GetStatus())
	}
}

func TestRuleServiceRequiresKey(t *testing.T) {
	conn := startServer(t, auth.NewAuthenticator(map[string][]byte{}, nil))
	ctx := context.Background()

	_, err := api.NewRuleServiceClient(conn).Compile(ctx, compileRequest(t))
	if status.Code(err) != codes.Unauthenticated {
		t.Errorf("Compile without key: code = %v, want Unauthenticated", status.Code(err))
	}

	// Health probes bypass authentication
	if _, err := grpc_health_v1.NewHealthClient(conn).Check(ctx, &grpc_health_v1.HealthCheckRequest{}); err != nil {
		t.Errorf("health check rejected: %v", err)
	}
}

func TestTimeoutInterceptor(t *testing.T) {
	interceptor := timeoutInterceptor(50 * time.Millisecond)
	_, err := interceptor(context.Background(), nil, &grpc.UnaryServerInfo{}, func(ctx context.Context, req any) (any, error) {
		deadline, ok := ctx.Deadline()
		if !ok {
			t.Fatal("handler context has no deadline")
		}
		if time.Until(deadline) > 50*time.Millisecond {
			t.Errorf("deadline too far: %v", time.Until(deadline))
		}
		return nil, nil
	})
	if err != nil {
		t.Fatal(err)
	}
}
