package vulkan

import (
	"context"
	"runtime"
	"unsafe"

	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/gpucore/engine/containers"
	"github.com/spaghettifunk/gpucore/engine/core"
	"github.com/spaghettifunk/gpucore/engine/renderer"
	"github.com/spaghettifunk/gpucore/engine/renderer/memory"
	"github.com/spaghettifunk/gpucore/engine/renderer/metadata"
	"github.com/spaghettifunk/gpucore/engine/renderer/resource"
)

var _ renderer.Backend = (*Backend)(nil)

// garbage destroys a native object once the GPU is done with it.
type garbage func(context *VulkanContext)

type submission struct {
	serial        core.Serial
	fence         *VulkanFence
	commandBuffer *VulkanCommandBuffer
}

type renderTarget struct {
	renderpass  *VulkanRenderpass
	framebuffer *VulkanFramebuffer
	width       uint32
	height      uint32
}

// Backend replays commands into one primary command buffer per submit on a
// single graphics and compute queue. It is headless: nothing is presented.
type Backend struct {
	config        core.DeviceConfig
	context       *VulkanContext
	debugCallback vk.DebugReportCallback
	descriptors   *VulkanDescriptorCache
	samplers      []vk.Sampler

	recording *VulkanCommandBuffer
	pipeline  *VulkanPipeline
	target    *renderTarget

	// Images whose first layout transition has not been recorded yet.
	pendingImages []*VulkanImage
	// Objects used by the batch being recorded.
	transients []garbage
	garbage    *containers.SerialQueue[garbage]

	inFlight       *containers.RingQueue[*submission]
	commandBuffers []*VulkanCommandBuffer
	fences         []*VulkanFence

	submitted core.Serial
	completed core.Serial
	shutdown  bool
}

func New(cfg core.DeviceConfig) (*Backend, error) {
	if err := vk.SetDefaultGetInstanceProcAddr(); err != nil {
		return nil, errors.Wrap(err, "failed to load the Vulkan loader")
	}
	if err := vk.Init(); err != nil {
		return nil, errors.Wrap(err, "failed to initialize vk")
	}

	b := &Backend{
		config: cfg,
		context: &VulkanContext{
			Allocator: nil,
			Locks:     NewVulkanLockPool(),
		},
		descriptors: NewVulkanDescriptorCache(),
		garbage:     containers.NewSerialQueue[garbage](),
		inFlight:    containers.NewRingQueue[*submission](4),
	}

	global, err := GatherGlobalInfo()
	if err != nil {
		return nil, err
	}
	b.context.Global = global

	if err := b.createInstance(); err != nil {
		return nil, err
	}
	if err := DeviceCreate(b.context); err != nil {
		core.LogError("Failed to create device!")
		b.destroyInstance()
		return nil, err
	}

	core.LogInfo("Vulkan backend initialized successfully.")
	return b, nil
}

func (b *Backend) createInstance() error {
	appName := b.config.ApplicationName
	if appName == "" {
		appName = VULKAN_ENGINE_NAME
	}
	appInfo := &vk.ApplicationInfo{
		SType:              vk.StructureTypeApplicationInfo,
		ApiVersion:         uint32(vk.MakeVersion(1, 0, 0)),
		ApplicationVersion: uint32(vk.MakeVersion(1, 0, 0)),
		PApplicationName:   VulkanSafeString(appName),
		PEngineName:        VulkanSafeString(VULKAN_ENGINE_NAME),
	}

	createInfo := vk.InstanceCreateInfo{
		SType:            vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo: appInfo,
	}

	var requiredExtensions []string
	if runtime.GOOS == "darwin" {
		requiredExtensions = append(requiredExtensions,
			"VK_KHR_portability_enumeration",
			"VK_KHR_get_physical_device_properties2",
		)
		// VK_INSTANCE_CREATE_ENUMERATE_PORTABILITY_BIT_KHR
		createInfo.Flags |= 1
	}

	var requiredLayers []string
	validation := b.config.Validation
	if validation && !b.context.Global.Validation {
		core.LogWarn("Validation requested but %s is not installed.", VULKAN_VALIDATION_LAYER)
		validation = false
	}
	if validation {
		core.LogInfo("Validation layers enabled.")
		requiredLayers = append(requiredLayers, VULKAN_VALIDATION_LAYER)
		if b.context.Global.DebugReport {
			requiredExtensions = append(requiredExtensions, vk.ExtDebugReportExtensionName)
		}
	}
	for _, extension := range requiredExtensions {
		core.LogDebug("Required extension: %s", extension)
	}

	createInfo.EnabledExtensionCount = uint32(len(requiredExtensions))
	createInfo.PpEnabledExtensionNames = VulkanSafeStrings(requiredExtensions)
	createInfo.EnabledLayerCount = uint32(len(requiredLayers))
	createInfo.PpEnabledLayerNames = VulkanSafeStrings(requiredLayers)

	if res := vk.CreateInstance(&createInfo, b.context.Allocator, &b.context.Instance); res != vk.Success {
		err := VulkanError(res, "vkCreateInstance")
		core.LogError(err.Error())
		return err
	}
	if err := vk.InitInstance(b.context.Instance); err != nil {
		core.LogError(err.Error())
		return err
	}
	core.LogInfo("Vulkan Instance created.")

	if validation && b.context.Global.DebugReport {
		core.LogDebug("Creating Vulkan debugger...")
		debugCreateInfo := vk.DebugReportCallbackCreateInfo{
			SType:       vk.StructureTypeDebugReportCallbackCreateInfo,
			Flags:       vk.DebugReportFlags(vk.DebugReportErrorBit | vk.DebugReportWarningBit | vk.DebugReportPerformanceWarningBit),
			PfnCallback: dbgCallbackFunc,
		}
		var dbg vk.DebugReportCallback
		if err := vk.Error(vk.CreateDebugReportCallback(b.context.Instance, &debugCreateInfo, nil, &dbg)); err != nil {
			core.LogWarn("vk.CreateDebugReportCallback failed with %s", err)
		} else {
			b.debugCallback = dbg
			core.LogDebug("Vulkan debugger created.")
		}
	}
	return nil
}

func (b *Backend) destroyInstance() {
	if b.debugCallback != nil {
		vk.DestroyDebugReportCallback(b.context.Instance, b.debugCallback, nil)
		b.debugCallback = nil
	}
	if b.context.Instance != nil {
		vk.DestroyInstance(b.context.Instance, b.context.Allocator)
		b.context.Instance = nil
	}
}

func (b *Backend) Name() string {
	return core.BackendVulkan
}

// Context exposes the native objects, for interop and device queries.
func (b *Backend) Context() *VulkanContext {
	return b.context
}

func (b *Backend) MemoryDevice() memory.Device {
	return &memoryDevice{context: b.context}
}

func (b *Backend) ResourceDevice(allocator *memory.Allocator) resource.Device {
	return &resourceDevice{backend: b, allocator: allocator}
}

func (b *Backend) forgetPendingImage(image *VulkanImage) {
	for i, pending := range b.pendingImages {
		if pending == image {
			b.pendingImages = append(b.pendingImages[:i], b.pendingImages[i+1:]...)
			return
		}
	}
}

// commandBuffer returns the buffer being recorded, starting one when needed.
func (b *Backend) commandBuffer() *VulkanCommandBuffer {
	if b.recording != nil {
		return b.recording
	}

	var cb *VulkanCommandBuffer
	if n := len(b.commandBuffers); n > 0 {
		cb = b.commandBuffers[n-1]
		b.commandBuffers = b.commandBuffers[:n-1]
	} else {
		var err error
		if err = b.context.Locks.SafeCall(CommandManagement, func() error {
			cb, err = NewVulkanCommandBuffer(b.context, b.context.Device.CommandPool)
			return err
		}); err != nil {
			core.Fatalf("vulkan: %v", err)
		}
	}
	if err := cb.Begin(true); err != nil {
		core.Fatalf("vulkan: %v", err)
	}
	b.recording = cb

	for _, image := range b.pendingImages {
		b.transitionImage(image, LayoutForState(image.State), image.State, 0)
	}
	b.pendingImages = b.pendingImages[:0]
	return cb
}

func (b *Backend) takeFence() (*VulkanFence, error) {
	if n := len(b.fences); n > 0 {
		fence := b.fences[n-1]
		b.fences = b.fences[:n-1]
		return fence, nil
	}
	return NewFence(b.context, false)
}

func (b *Backend) Submit(serial core.Serial) error {
	if b.shutdown {
		return errors.Wrap(core.ErrDeviceShutdown, "vulkan backend")
	}
	core.Assert(serial > b.submitted, "vulkan: submit serial %d is not after %d", serial, b.submitted)
	core.Assert(b.target == nil, "vulkan: submitting inside a render target")

	cb := b.commandBuffer()
	b.recording = nil
	b.pipeline = nil
	if err := cb.End(); err != nil {
		return err
	}
	fence, err := b.takeFence()
	if err != nil {
		return err
	}

	submitInfo := vk.SubmitInfo{
		SType:              vk.StructureTypeSubmitInfo,
		CommandBufferCount: 1,
		PCommandBuffers:    []vk.CommandBuffer{cb.Handle},
	}
	if err := b.context.Locks.SafeCall(QueueManagement, func() error {
		if res := vk.QueueSubmit(b.context.Device.Queue, 1, []vk.SubmitInfo{submitInfo}, fence.Handle); res != vk.Success {
			return VulkanError(res, "vkQueueSubmit")
		}
		return nil
	}); err != nil {
		core.LogError(err.Error())
		b.fences = append(b.fences, fence)
		if resetErr := cb.Reset(); resetErr == nil {
			b.commandBuffers = append(b.commandBuffers, cb)
		}
		return err
	}
	cb.UpdateSubmitted()

	b.submitted = serial
	b.inFlight.Enqueue(&submission{serial: serial, fence: fence, commandBuffer: cb})
	for _, g := range b.transients {
		b.garbage.Enqueue(g, serial)
	}
	b.transients = b.transients[:0]
	return nil
}

// retire recycles the command buffer and fence of a finished submission.
func (b *Backend) retire(s *submission) {
	b.completed = s.serial
	if err := s.fence.FenceReset(b.context); err != nil {
		s.fence.FenceDestroy(b.context)
	} else {
		b.fences = append(b.fences, s.fence)
	}
	if err := s.commandBuffer.Reset(); err != nil {
		s.commandBuffer.Free(b.context, b.context.Device.CommandPool)
	} else {
		b.commandBuffers = append(b.commandBuffers, s.commandBuffer)
	}
}

func (b *Backend) CompletedSerial() core.Serial {
	for !b.inFlight.IsEmpty() {
		s, _ := b.inFlight.Peek()
		signaled, err := s.fence.FenceStatus(b.context)
		if err != nil {
			core.LogError("vulkan: polling serial %d: %s", s.serial, err)
			break
		}
		if !signaled {
			break
		}
		_, _ = b.inFlight.Dequeue()
		b.retire(s)
	}
	return b.completed
}

// WaitForSerial blocks in slices so ctx is honored while the GPU works.
func (b *Backend) WaitForSerial(ctx context.Context, serial core.Serial) error {
	if serial > b.submitted {
		return errors.Newf("waiting for serial %d which was never submitted (last %d)", serial, b.submitted)
	}
	for b.CompletedSerial() < serial {
		if err := ctx.Err(); err != nil {
			return errors.Wrapf(err, "waiting for serial %d", serial)
		}
		s, err := b.inFlight.Peek()
		if err != nil {
			return errors.Wrapf(core.ErrNativeCall, "serial %d is neither completed nor in flight", serial)
		}
		if _, err := s.fence.FenceWait(b.context, VULKAN_FENCE_WAIT_SLICE_NS); err != nil {
			return errors.Wrapf(err, "waiting for serial %d", serial)
		}
	}
	return nil
}

func (b *Backend) Tick(finished core.Serial) {
	b.garbage.IterateUpTo(finished, func(g garbage) {
		g(b.context)
	})
}

func (b *Backend) Shutdown() error {
	if b.shutdown {
		return nil
	}
	b.shutdown = true
	if b.context.Device == nil || b.context.Device.LogicalDevice == nil {
		b.destroyInstance()
		return nil
	}

	var err error
	if res := vk.DeviceWaitIdle(b.context.LogicalDevice()); res != vk.Success {
		err = VulkanError(res, "vkDeviceWaitIdle")
		core.LogError(err.Error())
	}

	b.garbage.IterateUpTo(b.submitted, func(g garbage) {
		g(b.context)
	})
	for _, g := range b.transients {
		g(b.context)
	}
	b.transients = nil

	for !b.inFlight.IsEmpty() {
		s, _ := b.inFlight.Dequeue()
		s.fence.FenceDestroy(b.context)
		s.commandBuffer.Free(b.context, b.context.Device.CommandPool)
	}
	if b.recording != nil {
		b.recording.Free(b.context, b.context.Device.CommandPool)
		b.recording = nil
	}
	for _, cb := range b.commandBuffers {
		cb.Free(b.context, b.context.Device.CommandPool)
	}
	b.commandBuffers = nil
	for _, fence := range b.fences {
		fence.FenceDestroy(b.context)
	}
	b.fences = nil
	for _, sampler := range b.samplers {
		vk.DestroySampler(b.context.LogicalDevice(), sampler, b.context.Allocator)
	}
	b.samplers = nil
	b.descriptors.Destroy(b.context)

	DeviceDestroy(b.context)
	b.destroyInstance()
	core.LogInfo("Vulkan backend shut down.")
	return err
}

// CreateSampler returns a sampler for bind groups. It lives until shutdown.
func (b *Backend) CreateSampler(linear bool) (vk.Sampler, error) {
	sampler, err := SamplerCreate(b.context, linear)
	if err != nil {
		return nil, err
	}
	b.samplers = append(b.samplers, sampler)
	return sampler, nil
}

func (b *Backend) CreateComputePipeline(config *ComputePipelineConfig) (*metadata.Pipeline, error) {
	native, err := NewComputePipeline(b.context, b.descriptors, config)
	if err != nil {
		return nil, err
	}
	pipeline := &metadata.Pipeline{
		Label:  config.Label,
		Kind:   metadata.PipelineKindCompute,
		Native: native,
	}
	pipeline.PushConstants[metadata.ShaderStageCompute] = config.PushConstants
	return pipeline, nil
}

func (b *Backend) CreateRenderPipeline(config *RenderPipelineConfig) (*metadata.Pipeline, error) {
	native, err := NewGraphicsPipeline(b.context, b.descriptors, config)
	if err != nil {
		return nil, err
	}
	inputState := config.InputState
	inputState.Attributes = append([]metadata.VertexAttribute(nil), config.InputState.Attributes...)
	pipeline := &metadata.Pipeline{
		Label:       config.Label,
		Kind:        metadata.PipelineKindRender,
		InputState:  &inputState,
		IndexFormat: config.IndexFormat,
		Topology:    config.Topology,
		Native:      native,
	}
	pipeline.PushConstants[metadata.ShaderStageVertex] = config.PushConstants[metadata.ShaderStageVertex]
	pipeline.PushConstants[metadata.ShaderStageFragment] = config.PushConstants[metadata.ShaderStageFragment]
	return pipeline, nil
}

// DestroyPipeline defers destruction until the next submitted batch is done.
func (b *Backend) DestroyPipeline(pipeline *metadata.Pipeline) {
	native, ok := pipeline.Native.(*VulkanPipeline)
	if !ok {
		return
	}
	pipeline.Native = nil
	b.transients = append(b.transients, native.Destroy)
}

func (b *Backend) DestroyBindGroup(group *metadata.BindGroup) {
	native, ok := group.Native.(*VulkanBindGroup)
	if !ok {
		return
	}
	group.Native = nil
	b.transients = append(b.transients, native.Free)
}

func (b *Backend) BeginRenderTarget(desc *metadata.RenderTargetDescriptor) error {
	core.Assert(b.target == nil, "vulkan: render target already begun")
	if desc.Width == 0 || desc.Height == 0 {
		return errors.Wrapf(core.ErrNativeCall, "render target of %dx%d", desc.Width, desc.Height)
	}
	cb := b.commandBuffer()

	var colors [metadata.MaxColorAttachments]VulkanAttachment
	var views []vk.ImageView
	attachmentView := func(image *VulkanImage) (vk.ImageView, error) {
		if image.MipLevels == 1 {
			return image.View, nil
		}
		view, err := ImageViewCreate(b.context, image, 0, 1)
		if err != nil {
			return nil, err
		}
		b.transients = append(b.transients, func(context *VulkanContext) {
			vk.DestroyImageView(context.LogicalDevice(), view, context.Allocator)
		})
		return view, nil
	}

	for _, location := range metadata.IterateBits(uint64(desc.ColorsSet)) {
		image := desc.Colors[location].Native.(*VulkanImage)
		colors[location] = VulkanAttachment{Format: image.Format, Layout: image.Layout}
		view, err := attachmentView(image)
		if err != nil {
			return err
		}
		views = append(views, view)
	}
	var depthStencil *VulkanAttachment
	if desc.HasDepthStencil {
		image := desc.DepthStencil.Native.(*VulkanImage)
		depthStencil = &VulkanAttachment{Format: image.Format, Layout: image.Layout}
		view, err := attachmentView(image)
		if err != nil {
			return err
		}
		views = append(views, view)
	}

	renderpass, err := RenderpassCreate(b.context, colors, depthStencil)
	if err != nil {
		return err
	}
	b.transients = append(b.transients, renderpass.RenderpassDestroy)
	framebuffer, err := FramebufferCreate(b.context, renderpass, desc.Width, desc.Height, views)
	if err != nil {
		return err
	}
	b.transients = append(b.transients, framebuffer.Destroy)

	renderpass.RenderpassBegin(cb, framebuffer)
	b.target = &renderTarget{
		renderpass:  renderpass,
		framebuffer: framebuffer,
		width:       desc.Width,
		height:      desc.Height,
	}

	// Dynamic state starts out covering the whole target.
	b.SetViewport(0, 0, float32(desc.Width), float32(desc.Height))
	vk.CmdSetScissor(cb.Handle, 0, 1, []vk.Rect2D{{
		Offset: vk.Offset2D{X: 0, Y: 0},
		Extent: vk.Extent2D{Width: desc.Width, Height: desc.Height},
	}})
	return nil
}

func (b *Backend) EndRenderTarget() {
	core.Assert(b.target != nil, "vulkan: no render target")
	b.target.renderpass.RenderpassEnd(b.recording)
	b.target = nil
}

func (b *Backend) clearRect() []vk.ClearRect {
	return []vk.ClearRect{{
		Rect: vk.Rect2D{
			Offset: vk.Offset2D{X: 0, Y: 0},
			Extent: vk.Extent2D{Width: b.target.width, Height: b.target.height},
		},
		BaseArrayLayer: 0,
		LayerCount:     1,
	}}
}

func (b *Backend) ClearColor(location uint32, color [4]float32) {
	core.Assert(b.target != nil && b.target.renderpass.ColorsSet&(1<<location) != 0, "vulkan: no color attachment at %d", location)
	attachment := vk.ClearAttachment{
		AspectMask:      vk.ImageAspectFlags(vk.ImageAspectColorBit),
		ColorAttachment: location,
	}
	attachment.ClearValue.SetColor(color[:])
	vk.CmdClearAttachments(b.recording.Handle, 1, []vk.ClearAttachment{attachment}, 1, b.clearRect())
}

func (b *Backend) ClearDepthStencil(aspects metadata.ClearAspect, depth float32, stencil uint32) {
	core.Assert(b.target != nil && b.target.renderpass.HasDepthStencil, "vulkan: no depth-stencil attachment")
	var aspectMask vk.ImageAspectFlagBits
	if aspects&metadata.ClearAspectDepth != 0 {
		aspectMask |= vk.ImageAspectDepthBit
	}
	if aspects&metadata.ClearAspectStencil != 0 {
		aspectMask |= vk.ImageAspectStencilBit
	}
	if aspectMask == 0 {
		return
	}
	attachment := vk.ClearAttachment{
		AspectMask: vk.ImageAspectFlags(aspectMask),
	}
	attachment.ClearValue.SetDepthStencil(depth, stencil)
	vk.CmdClearAttachments(b.recording.Handle, 1, []vk.ClearAttachment{attachment}, 1, b.clearRect())
}

func (b *Backend) SetViewport(x, y, width, height float32) {
	vk.CmdSetViewport(b.commandBuffer().Handle, 0, 1, []vk.Viewport{{
		X:        x,
		Y:        y,
		Width:    width,
		Height:   height,
		MinDepth: 0.0,
		MaxDepth: 1.0,
	}})
}

func (b *Backend) SetBlendColor(color [4]float32) {
	vk.CmdSetBlendConstants(b.commandBuffer().Handle, &color)
}

func (b *Backend) SetStencilReference(reference uint32) {
	vk.CmdSetStencilReference(b.commandBuffer().Handle, vk.StencilFaceFlags(vk.StencilFrontAndBack), reference)
}

func (b *Backend) BindPipeline(pipeline *metadata.Pipeline) error {
	if pipeline == nil {
		return errors.Wrap(core.ErrNativeCall, "binding a nil pipeline")
	}
	native, ok := pipeline.Native.(*VulkanPipeline)
	if !ok || native.Handle == nil {
		return errors.Wrapf(core.ErrNativeCall, "pipeline '%s' has no Vulkan pipeline", pipeline.Label)
	}
	native.Bind(b.commandBuffer())
	b.pipeline = native
	return nil
}

func (b *Backend) SetPushConstant(stage metadata.ShaderStage, slot uint32, kind metadata.PushConstantType, value uint32) {
	core.Assert(b.pipeline != nil, "vulkan: push constant without a pipeline")
	offset := b.pipeline.PushConstantOffsets[stage] + slot*VULKAN_PUSH_CONSTANT_SIZE
	vk.CmdPushConstants(b.recording.Handle, b.pipeline.PipelineLayout,
		vk.ShaderStageFlags(TranslateShaderStage(stage)), offset, VULKAN_PUSH_CONSTANT_SIZE, unsafe.Pointer(&value))
}

func (b *Backend) BindVertexBuffer(slot uint32, buffer *resource.Resource, offset uint64, input metadata.VertexInput) {
	vk.CmdBindVertexBuffers(b.commandBuffer().Handle, slot, 1,
		[]vk.Buffer{buffer.Native.(*VulkanBuffer).Handle}, []vk.DeviceSize{vk.DeviceSize(offset)})
}

func (b *Backend) BindIndexBuffer(buffer *resource.Resource, offset uint64, format metadata.IndexFormat) {
	vk.CmdBindIndexBuffer(b.commandBuffer().Handle, buffer.Native.(*VulkanBuffer).Handle,
		vk.DeviceSize(offset), TranslateIndexFormat(format))
}

func (b *Backend) BindGroup(index uint32, group *metadata.BindGroup, bindings []metadata.ResolvedBinding) {
	core.Assert(b.pipeline != nil, "vulkan: bind group %d without a pipeline", index)
	native, ok := group.Native.(*VulkanBindGroup)
	if !ok {
		var err error
		if native, err = b.descriptors.Allocate(b.context, group.Layout); err != nil {
			core.Fatalf("vulkan: bind group %d: %v", group.ID, err)
		}
		group.Native = native
	}
	if !native.Written {
		native.Write(b.context, bindings)
	}
	vk.CmdBindDescriptorSets(b.commandBuffer().Handle, b.pipeline.BindPoint, b.pipeline.PipelineLayout,
		index, 1, []vk.DescriptorSet{native.Set}, 0, nil)
}

func (b *Backend) Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	vk.CmdDraw(b.commandBuffer().Handle, vertexCount, instanceCount, firstVertex, firstInstance)
}

func (b *Backend) DrawIndexed(indexCount, instanceCount, firstIndex, firstInstance uint32) {
	vk.CmdDrawIndexed(b.commandBuffer().Handle, indexCount, instanceCount, firstIndex, 0, firstInstance)
}

func (b *Backend) Dispatch(x, y, z uint32) {
	vk.CmdDispatch(b.commandBuffer().Handle, x, y, z)
}

func (b *Backend) MemoryBarrier() {
	barrier := vk.MemoryBarrier{
		SType:         vk.StructureTypeMemoryBarrier,
		SrcAccessMask: vk.AccessFlags(vk.AccessShaderWriteBit),
		DstAccessMask: vk.AccessFlags(vk.AccessMemoryReadBit | vk.AccessMemoryWriteBit),
	}
	vk.CmdPipelineBarrier(b.commandBuffer().Handle,
		vk.PipelineStageFlags(vk.PipelineStageComputeShaderBit), vk.PipelineStageFlags(vk.PipelineStageAllCommandsBit),
		0, 1, []vk.MemoryBarrier{barrier}, 0, nil, 0, nil)
}

func srcStages(state metadata.NativeState) vk.PipelineStageFlags {
	if stages := StageForState(state); stages != 0 {
		return stages
	}
	return vk.PipelineStageFlags(vk.PipelineStageTopOfPipeBit)
}

func dstStages(state metadata.NativeState) vk.PipelineStageFlags {
	if stages := StageForState(state); stages != 0 {
		return stages
	}
	return vk.PipelineStageFlags(vk.PipelineStageBottomOfPipeBit)
}

func (b *Backend) transitionImage(image *VulkanImage, layout vk.ImageLayout, after metadata.NativeState, srcAccess vk.AccessFlags) {
	barrier := vk.ImageMemoryBarrier{
		SType:               vk.StructureTypeImageMemoryBarrier,
		SrcAccessMask:       srcAccess,
		DstAccessMask:       AccessForState(after),
		OldLayout:           image.Layout,
		NewLayout:           layout,
		SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
		DstQueueFamilyIndex: vk.QueueFamilyIgnored,
		Image:               image.Handle,
		SubresourceRange:    image.SubresourceRange(),
	}
	srcStage := vk.PipelineStageFlags(vk.PipelineStageTopOfPipeBit)
	if srcAccess != 0 {
		srcStage = srcStages(image.State)
	}
	vk.CmdPipelineBarrier(b.recording.Handle, srcStage, dstStages(after),
		0, 0, nil, 0, nil, 1, []vk.ImageMemoryBarrier{barrier})
	image.Layout = layout
	image.State = after
}

func (b *Backend) ResourceBarrier(barrier metadata.Barrier) {
	core.Assert(b.target == nil, "vulkan: resource barrier inside a render target")
	cb := b.commandBuffer()
	switch native := barrier.Native.(type) {
	case *VulkanImage:
		b.transitionImage(native, LayoutForState(barrier.StateAfter), barrier.StateAfter, AccessForState(barrier.StateBefore))
	case *VulkanBuffer:
		bufferBarrier := vk.BufferMemoryBarrier{
			SType:               vk.StructureTypeBufferMemoryBarrier,
			SrcAccessMask:       AccessForState(barrier.StateBefore),
			DstAccessMask:       AccessForState(barrier.StateAfter),
			SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
			DstQueueFamilyIndex: vk.QueueFamilyIgnored,
			Buffer:              native.Handle,
			Offset:              0,
			Size:                vk.DeviceSize(vk.WholeSize),
		}
		vk.CmdPipelineBarrier(cb.Handle, srcStages(barrier.StateBefore), dstStages(barrier.StateAfter),
			0, 0, nil, 1, []vk.BufferMemoryBarrier{bufferBarrier}, 0, nil)
		native.State = barrier.StateAfter
	default:
		core.Fatalf("vulkan: barrier on foreign resource %T", barrier.Native)
	}
}

func (b *Backend) CopyBufferToBuffer(src *resource.Resource, srcOffset uint64, dst *resource.Resource, dstOffset, size uint64) error {
	from := src.Native.(*VulkanBuffer)
	to := dst.Native.(*VulkanBuffer)
	if srcOffset+size > from.Size || dstOffset+size > to.Size {
		return errors.Wrapf(core.ErrNativeCall, "copy of %d bytes from '%s'+%d to '%s'+%d is out of bounds",
			size, src.Label, srcOffset, dst.Label, dstOffset)
	}
	if size == 0 {
		return nil
	}
	vk.CmdCopyBuffer(b.commandBuffer().Handle, from.Handle, to.Handle, 1, []vk.BufferCopy{{
		SrcOffset: vk.DeviceSize(srcOffset),
		DstOffset: vk.DeviceSize(dstOffset),
		Size:      vk.DeviceSize(size),
	}})
	return nil
}

// bufferImageCopy validates a copy region against both ends and describes
// it the way the driver wants it.
func bufferImageCopy(buffer *VulkanBuffer, offset uint64, rowPitch uint32, image *VulkanImage, region metadata.TextureRegion) (vk.BufferImageCopy, error) {
	if image.Format.HasDepthOrStencil() {
		return vk.BufferImageCopy{}, errors.Wrapf(core.ErrNativeCall, "copies of %s textures are not supported", image.Format)
	}
	depth := region.Depth
	if depth == 0 {
		depth = 1
	}
	if region.Level >= image.MipLevels {
		return vk.BufferImageCopy{}, errors.Wrapf(core.ErrNativeCall, "mip level %d of a texture with %d levels", region.Level, image.MipLevels)
	}
	width, height, depthExtent := image.Width>>region.Level, image.Height>>region.Level, image.Depth>>region.Level
	width, height, depthExtent = max(width, 1), max(height, 1), max(depthExtent, 1)
	if region.X+region.Width > width || region.Y+region.Height > height || region.Z+depth > depthExtent {
		return vk.BufferImageCopy{}, errors.Wrapf(core.ErrNativeCall, "region %+v is outside a %dx%dx%d level", region, width, height, depthExtent)
	}

	pixel := image.Format.PixelSize()
	rowBytes := region.Width * pixel
	if rowPitch < rowBytes || rowPitch%pixel != 0 {
		return vk.BufferImageCopy{}, errors.Wrapf(core.ErrNativeCall, "row pitch %d does not fit rows of %d bytes", rowPitch, rowBytes)
	}
	if region.Width > 0 && region.Height > 0 {
		last := offset + uint64(rowPitch)*(uint64(region.Height)*uint64(depth)-1) + uint64(rowBytes)
		if last > buffer.Size {
			return vk.BufferImageCopy{}, errors.Wrapf(core.ErrNativeCall, "buffer of %d bytes is too small, %d needed", buffer.Size, last)
		}
	}

	return vk.BufferImageCopy{
		BufferOffset:      vk.DeviceSize(offset),
		BufferRowLength:   rowPitch / pixel,
		BufferImageHeight: region.Height,
		ImageSubresource: vk.ImageSubresourceLayers{
			AspectMask:     AspectForFormat(image.Format),
			MipLevel:       region.Level,
			BaseArrayLayer: 0,
			LayerCount:     1,
		},
		ImageOffset: vk.Offset3D{X: int32(region.X), Y: int32(region.Y), Z: int32(region.Z)},
		ImageExtent: vk.Extent3D{Width: region.Width, Height: region.Height, Depth: depth},
	}, nil
}

func (b *Backend) CopyBufferToTexture(src *resource.Resource, srcOffset uint64, rowPitch uint32, dst *resource.Resource, region metadata.TextureRegion) error {
	from := src.Native.(*VulkanBuffer)
	to := dst.Native.(*VulkanImage)
	copyRegion, err := bufferImageCopy(from, srcOffset, rowPitch, to, region)
	if err != nil {
		return errors.Wrapf(err, "copy from '%s' to '%s'", src.Label, dst.Label)
	}
	if region.Width == 0 || region.Height == 0 {
		return nil
	}
	vk.CmdCopyBufferToImage(b.commandBuffer().Handle, from.Handle, to.Handle, to.Layout, 1, []vk.BufferImageCopy{copyRegion})
	return nil
}

func (b *Backend) CopyTextureToBuffer(src *resource.Resource, region metadata.TextureRegion, dst *resource.Resource, dstOffset uint64, rowPitch uint32) error {
	from := src.Native.(*VulkanImage)
	to := dst.Native.(*VulkanBuffer)
	copyRegion, err := bufferImageCopy(to, dstOffset, rowPitch, from, region)
	if err != nil {
		return errors.Wrapf(err, "copy from '%s' to '%s'", src.Label, dst.Label)
	}
	if region.Width == 0 || region.Height == 0 {
		return nil
	}
	vk.CmdCopyImageToBuffer(b.commandBuffer().Handle, from.Handle, from.Layout, to.Handle, 1, []vk.BufferImageCopy{copyRegion})
	return nil
}

func dbgCallbackFunc(flags vk.DebugReportFlags, objectType vk.DebugReportObjectType, object uint64, location uint64, messageCode int32, pLayerPrefix string, pMessage string, pUserData unsafe.Pointer) vk.Bool32 {
	switch {
	case flags&vk.DebugReportFlags(vk.DebugReportErrorBit) != 0:
		core.LogError("ERROR: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportWarningBit) != 0:
		core.LogWarn("WARNING: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportPerformanceWarningBit) != 0:
		core.LogWarn("PERFORMANCE WARNING: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	default:
		core.LogInfo("INFORMATION: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	}
	return vk.Bool32(vk.False)
}
