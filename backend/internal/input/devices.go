package input

import (
	"sort"

	"github.com/go-gl/mathgl/mgl32"
)

// DevicePose мировое положение и ориентация устройства
type DevicePose struct {
	ID          DeviceID
	Position    mgl32.Vec3
	Orientation mgl32.Quat
}

// Forward возвращает направление "вперед" устройства: (0,0,-1) в его системе координат
func (p DevicePose) Forward() mgl32.Vec3 {
	return p.Orientation.Rotate(mgl32.Vec3{0, 0, -1}).Normalize()
}

// DeviceRegistry хранит последнюю известную позу каждого устройства
type DeviceRegistry struct {
	poses map[DeviceID]DevicePose
}

func NewDeviceRegistry() *DeviceRegistry {
	return &DeviceRegistry{poses: make(map[DeviceID]DevicePose)}
}

// UpdatePose запоминает позу устройства
func (r *DeviceRegistry) UpdatePose(pose DevicePose) {
	if pose.Orientation.Len() == 0 {
		pose.Orientation = mgl32.QuatIdent()
	}
	r.poses[pose.ID] = pose
}

// Pose возвращает последнюю позу устройства
func (r *DeviceRegistry) Pose(id DeviceID) (DevicePose, bool) {
	pose, ok := r.poses[id]
	return pose, ok
}

// Forget удаляет устройство из реестра
func (r *DeviceRegistry) Forget(id DeviceID) {
	delete(r.poses, id)
}

// IDs возвращает известные устройства в стабильном порядке
func (r *DeviceRegistry) IDs() []DeviceID {
	ids := make([]DeviceID, 0, len(r.poses))
	for id := range r.poses {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (r *DeviceRegistry) Len() int {
	return len(r.poses)
}
