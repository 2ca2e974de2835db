package mock

import (
	"testing"
	"time"

	"github.com/clearpath-sim/syncframe/internal/sensor"
)

func TestMockCameraSource(t *testing.T) {
	src := Camera("test_cam", 200.0, 100, 100)

	received := make(chan sensor.Packet, 8)
	src.Listen(func(p sensor.Packet) { received <- p })
	defer src.Stop()

	for i := 0; i < 3; i++ {
		select {
		case p := <-received:
			if p.ID != "test_cam" {
				t.Fatalf("packet ID = %v, want test_cam", p.ID)
			}
			if p.Kind != sensor.Camera {
				t.Fatalf("packet Kind = %v, want Camera", p.Kind)
			}
			if p.FrameID == nil {
				t.Fatalf("expected a frame id")
			}
			img, ok := p.Payload.(sensor.ImagePayload)
			if !ok {
				t.Fatalf("expected ImagePayload, got %T", p.Payload)
			}
			if img.Width != 100 || img.Height != 100 {
				t.Fatalf("image size = %dx%d, want 100x100", img.Width, img.Height)
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for packet %d", i)
		}
	}
}

func TestMockIMUSource(t *testing.T) {
	src := IMU("test_imu", 200.0)

	received := make(chan sensor.Packet, 8)
	src.Listen(func(p sensor.Packet) { received <- p })
	defer src.Stop()

	select {
	case p := <-received:
		imu, ok := p.Payload.(sensor.IMUPayload)
		if !ok {
			t.Fatalf("expected IMUPayload, got %T", p.Payload)
		}
		if diff := imu.Accelerometer.Z - 9.81; diff > 0.01 || diff < -0.01 {
			t.Fatalf("accelerometer.Z = %v, want ~9.81", imu.Accelerometer.Z)
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for packet")
	}
}

func TestMockSourceListenIsIdempotent(t *testing.T) {
	src := IMU("idempotent", 200.0)

	var calls1, calls2 int
	src.Listen(func(sensor.Packet) { calls1++ })
	src.Listen(func(sensor.Packet) { calls2++ }) // second call is a no-op
	defer src.Stop()

	time.Sleep(30 * time.Millisecond)

	if calls2 != 0 {
		t.Fatalf("second Listen call registered a callback path, calls2=%d", calls2)
	}
	if calls1 == 0 {
		t.Fatalf("first Listen call never fired")
	}
}

func TestMockSourceStopStopsDelivery(t *testing.T) {
	src := IMU("stoppable", 500.0)

	received := make(chan sensor.Packet, 64)
	src.Listen(func(p sensor.Packet) { received <- p })
	time.Sleep(20 * time.Millisecond)
	src.Stop()

	if src.IsListening() {
		t.Fatalf("expected IsListening to be false after Stop")
	}
	for len(received) > 0 {
		<-received
	}
	time.Sleep(20 * time.Millisecond)
	if len(received) != 0 {
		t.Fatalf("expected no packets after Stop, got %d", len(received))
	}
}
