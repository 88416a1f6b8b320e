package physics

import (
	"log"
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"x-rail/backend/internal/config"
	portPhysics "x-rail/backend/internal/core/port/out/physics"
)

// Скорость сближения, ниже которой удар считается неупругим (гасит дребезг на полу)
const restitutionThreshold = 0.5

// rigidBody внутреннее состояние тела в симуляции
type rigidBody struct {
	handle     portPhysics.BodyHandle
	shape      portPhysics.ShapeDescriptor
	pos        mgl32.Vec3
	rot        mgl32.Quat
	linVel     mgl32.Vec3
	angVel     mgl32.Vec3
	invMass    float32
	invInertia mgl32.Vec3
}

func (b *rigidBody) isStatic() bool {
	return b.invMass == 0
}

// boundingRadius радиус, которым тело участвует в контактах как сфера
func (b *rigidBody) boundingRadius() float32 {
	if b.shape.Type == portPhysics.SPHERE {
		return b.shape.Radius
	}
	return b.shape.HalfExtents.Len()
}

// DynamicsWorld адаптер физики, выполняющий симуляцию в процессе.
// Шаги фиксированной длины, как stepSimulation в Bullet.
type DynamicsWorld struct {
	cfg     config.PhysicsConfig
	logger  *log.Logger
	gravity mgl32.Vec3

	bodies     map[portPhysics.BodyHandle]*rigidBody
	order      []portPhysics.BodyHandle // Порядок добавления, чтобы шаг был детерминированным
	nextHandle portPhysics.BodyHandle

	localTime   float32 // Остаток времени, не покрытый подшагами
	initialized bool

	subSteps     uint64
	droppedSteps uint64
}

var _ portPhysics.PhysicsPort = (*DynamicsWorld)(nil)

// NewDynamicsWorld создает адаптер. До вызова Init мир не симулируется.
func NewDynamicsWorld(cfg config.PhysicsConfig, logger *log.Logger) *DynamicsWorld {
	if logger == nil {
		logger = log.Default()
	}

	return &DynamicsWorld{
		cfg:    cfg,
		logger: logger,
		bodies: make(map[portPhysics.BodyHandle]*rigidBody),
	}
}

// Init создает мир с гравитацией из конфигурации
func (w *DynamicsWorld) Init() {
	if w.initialized {
		return
	}

	w.gravity = mgl32.Vec3{0, w.cfg.Gravity, 0}
	w.initialized = true

	w.logger.Printf("[Physics] Мир инициализирован: гравитация %.2f, подшаг %.4fс, максимум подшагов %d",
		w.cfg.Gravity, w.cfg.FixedTimeStep, w.cfg.Steps)
}

// Initialized сообщает, готов ли мир к симуляции
func (w *DynamicsWorld) Initialized() bool {
	return w != nil && w.initialized
}

// CreateStaticBody создает неподвижное тело
func (w *DynamicsWorld) CreateStaticBody(shape portPhysics.ShapeDescriptor, pos mgl32.Vec3) portPhysics.BodyHandle {
	return w.addBody(shape, pos, 0)
}

// CreateDynamicBody создает подвижное тело с массой mass.
// Тело с неположительной массой становится статическим.
func (w *DynamicsWorld) CreateDynamicBody(shape portPhysics.ShapeDescriptor, pos mgl32.Vec3, mass float32) portPhysics.BodyHandle {
	if mass <= 0 {
		w.logger.Printf("[Physics] Масса %.2f не положительна, тело будет статическим", mass)
		mass = 0
	}
	return w.addBody(shape, pos, mass)
}

func (w *DynamicsWorld) addBody(shape portPhysics.ShapeDescriptor, pos mgl32.Vec3, mass float32) portPhysics.BodyHandle {
	if !w.Initialized() {
		w.logger.Printf("[Physics] Мир не инициализирован, тело не создано")
		return 0
	}

	w.nextHandle++
	body := &rigidBody{
		handle: w.nextHandle,
		shape:  shape,
		pos:    pos,
		rot:    mgl32.QuatIdent(),
	}

	if mass > 0 {
		body.invMass = 1 / mass
		inertia := shape.LocalInertia(mass)
		body.invInertia = mgl32.Vec3{invOrZero(inertia.X()), invOrZero(inertia.Y()), invOrZero(inertia.Z())}
	}

	w.bodies[body.handle] = body
	w.order = append(w.order, body.handle)
	return body.handle
}

// SetLinearVelocity задает линейную скорость тела
func (w *DynamicsWorld) SetLinearVelocity(h portPhysics.BodyHandle, v mgl32.Vec3) {
	body, ok := w.bodies[h]
	if !ok || body.isStatic() {
		return
	}
	body.linVel = v
}

// LinearVelocity возвращает текущую линейную скорость тела
func (w *DynamicsWorld) LinearVelocity(h portPhysics.BodyHandle) (mgl32.Vec3, bool) {
	body, ok := w.bodies[h]
	if !ok {
		return mgl32.Vec3{}, false
	}
	return body.linVel, true
}

// RemoveBody удаляет тело. Повторный вызов для того же дескриптора возвращает false.
func (w *DynamicsWorld) RemoveBody(h portPhysics.BodyHandle) bool {
	if _, ok := w.bodies[h]; !ok {
		return false
	}

	delete(w.bodies, h)
	for i, id := range w.order {
		if id == h {
			w.order = append(w.order[:i], w.order[i+1:]...)
			break
		}
	}
	return true
}

// BodyCount возвращает количество тел в мире
func (w *DynamicsWorld) BodyCount() int {
	return len(w.bodies)
}

// ReadTransform возвращает позицию и ориентацию тела.
// Для подвижных тел позиция интерполируется на остаток времени, как в motion state Bullet.
func (w *DynamicsWorld) ReadTransform(h portPhysics.BodyHandle) (mgl32.Vec3, mgl32.Quat, bool) {
	body, ok := w.bodies[h]
	if !ok {
		return mgl32.Vec3{}, mgl32.QuatIdent(), false
	}

	if body.isStatic() || w.localTime == 0 {
		return body.pos, body.rot, true
	}
	return body.pos.Add(body.linVel.Mul(w.localTime)), body.rot, true
}

// Step продвигает симуляцию. Время, не уместившееся в maxSubSteps подшагов, теряется.
// При maxSubSteps <= 0 выполняется один шаг переменной длины dt.
func (w *DynamicsWorld) Step(dt float32, maxSubSteps int) {
	if !w.Initialized() || dt <= 0 {
		return
	}

	if maxSubSteps <= 0 {
		w.localTime = 0
		w.subStep(dt)
		return
	}

	fixed := w.cfg.FixedTimeStep
	w.localTime += dt

	steps := 0
	if w.localTime >= fixed {
		steps = int(w.localTime / fixed)
		w.localTime -= float32(steps) * fixed
	}

	if steps > maxSubSteps {
		w.droppedSteps += uint64(steps - maxSubSteps)
		steps = maxSubSteps
	}

	for i := 0; i < steps; i++ {
		w.subStep(fixed)
	}
}

// Stats возвращает счетчики симуляции
func (w *DynamicsWorld) Stats() map[string]interface{} {
	return map[string]interface{}{
		"bodies":        len(w.bodies),
		"sub_steps":     w.subSteps,
		"dropped_steps": w.droppedSteps,
		"initialized":   w.initialized,
	}
}

// subStep выполняет один подшаг интегрирования и разрешения контактов
func (w *DynamicsWorld) subStep(h float32) {
	w.subSteps++

	dynamic := make([]*rigidBody, 0, len(w.order))
	static := make([]*rigidBody, 0, len(w.order))
	for _, id := range w.order {
		body := w.bodies[id]
		if body.isStatic() {
			static = append(static, body)
		} else {
			dynamic = append(dynamic, body)
		}
	}

	// Интегрирование: скорость, затем позиция (полунеявный Эйлер)
	for _, b := range dynamic {
		b.linVel = b.linVel.Add(w.gravity.Mul(h))
		b.pos = b.pos.Add(b.linVel.Mul(h))

		if b.angVel.Len() > 0 {
			spin := mgl32.Quat{W: 0, V: b.angVel}.Mul(b.rot).Scale(0.5 * h)
			b.rot = b.rot.Add(spin).Normalize()
		}
	}

	// Контакты
	for i, b := range dynamic {
		for _, s := range static {
			w.collide(b, s)
		}
		for _, o := range dynamic[i+1:] {
			w.collide(b, o)
		}
	}
}

// collide находит контакт между a (подвижным) и b и разрешает его.
// Зазоры форм складываются: в пределах зазора тела уже в контакте,
// но выталкиваются только на глубину сверх него.
func (w *DynamicsWorld) collide(a, b *rigidBody) {
	var normal mgl32.Vec3
	var depth float32
	var ok bool

	slop := a.shape.Margin + b.shape.Margin
	ra := a.boundingRadius()
	if b.shape.Type == portPhysics.BOX && b.isStatic() {
		normal, depth, ok = sphereBoxContact(a.pos, ra+slop, b.pos, b.shape.HalfExtents)
	} else {
		normal, depth, ok = sphereSphereContact(a.pos, ra+slop, b.pos, b.boundingRadius())
	}
	if !ok {
		return
	}

	contact := a.pos.Sub(normal.Mul(ra))
	resolveContact(a, b, normal, max(depth-slop, 0), contact)
}

// resolveContact разделяет тела и применяет импульсы отскока и трения.
// normal направлена от b к a.
func resolveContact(a, b *rigidBody, normal mgl32.Vec3, depth float32, contact mgl32.Vec3) {
	invSum := a.invMass + b.invMass
	if invSum == 0 {
		return
	}

	// Выталкивание пропорционально обратным массам
	correction := normal.Mul(depth / invSum)
	a.pos = a.pos.Add(correction.Mul(a.invMass))
	b.pos = b.pos.Sub(correction.Mul(b.invMass))

	rA := contact.Sub(a.pos)
	rB := contact.Sub(b.pos)

	vA := a.linVel.Add(a.angVel.Cross(rA))
	vB := b.linVel.Add(b.angVel.Cross(rB))
	relative := vA.Sub(vB)

	vn := relative.Dot(normal)
	if vn >= 0 {
		return
	}

	restitution := combined(a.shape.Restitution, b.shape.Restitution)
	if -vn < restitutionThreshold {
		restitution = 0
	}

	// Для сфер плечо параллельно нормали, угловой член в знаменателе равен нулю
	j := -(1 + restitution) * vn / invSum
	impulse := normal.Mul(j)
	a.linVel = a.linVel.Add(impulse.Mul(a.invMass))
	b.linVel = b.linVel.Sub(impulse.Mul(b.invMass))

	// Трение Кулона закручивает сферу
	tangential := relative.Sub(normal.Mul(vn))
	speed := tangential.Len()
	if speed < 1e-5 {
		return
	}

	t := tangential.Mul(1 / speed)
	kA := a.invMass + angularTerm(a.invInertia, rA, t)
	kB := b.invMass + angularTerm(b.invInertia, rB, t)
	if kA+kB == 0 {
		return
	}

	jt := speed / (kA + kB)
	if limit := combined(a.shape.Friction, b.shape.Friction) * j; jt > limit {
		jt = limit
	}

	friction := t.Mul(-jt)
	a.linVel = a.linVel.Add(friction.Mul(a.invMass))
	a.angVel = a.angVel.Add(mulElem(a.invInertia, rA.Cross(friction)))
	b.linVel = b.linVel.Sub(friction.Mul(b.invMass))
	b.angVel = b.angVel.Sub(mulElem(b.invInertia, rB.Cross(friction)))
}

// sphereBoxContact контакт сферы с выровненной по осям коробкой
func sphereBoxContact(center mgl32.Vec3, radius float32, boxPos, halfExtents mgl32.Vec3) (mgl32.Vec3, float32, bool) {
	local := center.Sub(boxPos)
	closest := mgl32.Vec3{
		mgl32.Clamp(local.X(), -halfExtents.X(), halfExtents.X()),
		mgl32.Clamp(local.Y(), -halfExtents.Y(), halfExtents.Y()),
		mgl32.Clamp(local.Z(), -halfExtents.Z(), halfExtents.Z()),
	}

	delta := local.Sub(closest)
	dist := delta.Len()
	if dist > 1e-6 {
		if dist >= radius {
			return mgl32.Vec3{}, 0, false
		}
		return delta.Mul(1 / dist), radius - dist, true
	}

	// Центр внутри коробки: выталкиваем по оси наименьшего проникновения
	best := -1
	bestDepth := float32(math.MaxFloat32)
	for axis := 0; axis < 3; axis++ {
		d := halfExtents[axis] - mgl32.Abs(local[axis])
		if d < bestDepth {
			bestDepth = d
			best = axis
		}
	}

	var normal mgl32.Vec3
	normal[best] = 1
	if local[best] < 0 {
		normal[best] = -1
	}
	return normal, bestDepth + radius, true
}

// sphereSphereContact контакт двух сфер
func sphereSphereContact(a mgl32.Vec3, ra float32, b mgl32.Vec3, rb float32) (mgl32.Vec3, float32, bool) {
	delta := a.Sub(b)
	dist := delta.Len()
	if dist >= ra+rb {
		return mgl32.Vec3{}, 0, false
	}
	if dist < 1e-6 {
		return mgl32.Vec3{0, 1, 0}, ra + rb, true
	}
	return delta.Mul(1 / dist), ra + rb - dist, true
}

func angularTerm(invInertia, r, dir mgl32.Vec3) float32 {
	rc := r.Cross(dir)
	return rc.Dot(mulElem(invInertia, rc))
}

func mulElem(a, b mgl32.Vec3) mgl32.Vec3 {
	return mgl32.Vec3{a.X() * b.X(), a.Y() * b.Y(), a.Z() * b.Z()}
}

// combined смешивает коэффициенты двух материалов произведением, как Bullet
func combined(a, b float32) float32 {
	return a * b
}

func invOrZero(v float32) float32 {
	if v == 0 {
		return 0
	}
	return 1 / v
}
